package memoria

// Constantes de la arquitectura simulada (RISC-V Sv39)
const (
	TamPagina   = 4096 // bytes por página
	DesplPagina = 12   // bits de desplazamiento dentro de la página

	EntradasPorTabla = 512 // entradas de 64 bits por tabla
	NivelesTabla     = 3

	// BaseKernel es la primera dirección física de la RAM simulada
	BaseKernel uint64 = 0x80000000

	// MaxVA es uno más que la mayor dirección virtual válida. Sv39 admite
	// 39 bits, pero se usa uno menos para evitar extender el signo.
	MaxVA uint64 = 1 << (9 + 9 + 9 + 12 - 1)

	// Trampolin y MarcoTrap ocupan las dos páginas más altas de todo espacio
	Trampolin uint64 = MaxVA - TamPagina
	MarcoTrap uint64 = Trampolin - TamPagina
)

// PTE es una entrada de tabla de páginas tal como se guarda en memoria
type PTE uint64

// Bits de una PTE
const (
	PteV  PTE = 1 << 0 // válida
	PteR  PTE = 1 << 1
	PteW  PTE = 1 << 2
	PteX  PTE = 1 << 3
	PteU  PTE = 1 << 4 // accesible desde modo usuario
	PteA  PTE = 1 << 6 // accedida
	PteD  PTE = 1 << 7 // escrita
	PtePG PTE = 1 << 9 // página en swap (bit reservado para software)
)

const mascaraFlags PTE = 0x3FF

// Valida indica si la entrada tiene el bit V
func (p PTE) Valida() bool { return p&PteV != 0 }

// EnSwap indica si la entrada apunta a una página desalojada
func (p PTE) EnSwap() bool { return p&PtePG != 0 }

// Flags devuelve los 10 bits bajos de la entrada
func (p PTE) Flags() PTE { return p & mascaraFlags }

// Hoja indica si la entrada mapea una página y no otra tabla
func (p PTE) Hoja() bool { return p&(PteR|PteW|PteX) != 0 }

// DirFisica extrae la dirección física que referencia la entrada
func (p PTE) DirFisica() uint64 { return (uint64(p) >> 10) << DesplPagina }

// PAaPTE arma la parte de número de página física de una entrada
func PAaPTE(pa uint64) PTE { return PTE((pa >> DesplPagina) << 10) }

// Indice devuelve el índice de 9 bits de va para el nivel dado
func Indice(nivel int, va uint64) int {
	return int((va >> (DesplPagina + 9*uint(nivel))) & 0x1FF)
}

// RedondearArriba lleva a al múltiplo de página siguiente
func RedondearArriba(a uint64) uint64 {
	return (a + TamPagina - 1) &^ (TamPagina - 1)
}

// RedondearAbajo lleva a al inicio de su página
func RedondearAbajo(a uint64) uint64 {
	return a &^ (TamPagina - 1)
}
