package memoria

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Valores de relleno para detectar usos de memoria sin inicializar
const (
	rellenoLiberado = 0x01
	rellenoAsignado = 0x05
)

// Fisica es la RAM simulada junto con su lista de marcos libres.
// Las direcciones físicas arrancan en BaseKernel.
type Fisica struct {
	ram    []byte
	marcos int

	mu     sync.Mutex // protege libres y enUso
	libres []int      // pila de marcos libres
	enUso  []bool

	log *slog.Logger
}

// NuevaFisica crea una RAM de cantidadMarcos páginas, todas libres
func NuevaFisica(cantidadMarcos int, log *slog.Logger) *Fisica {
	if cantidadMarcos <= 0 {
		panic("memoria: cantidad de marcos inválida")
	}
	f := &Fisica{
		ram:    make([]byte, cantidadMarcos*TamPagina),
		marcos: cantidadMarcos,
		libres: make([]int, 0, cantidadMarcos),
		enUso:  make([]bool, cantidadMarcos),
		log:    utils.LoggerOPorDefecto(log),
	}
	// Se apilan al revés para que el primer marco entregado sea el más bajo
	for i := cantidadMarcos - 1; i >= 0; i-- {
		f.libres = append(f.libres, i)
	}
	for i := range f.ram {
		f.ram[i] = rellenoLiberado
	}
	f.log.Info("Memoria física inicializada", "marcos", cantidadMarcos, "bytes", len(f.ram))
	return f
}

// Reservar entrega un marco libre relleno con basura.
// Quien lo pide es responsable de inicializarlo.
func (f *Fisica) Reservar() (uint64, error) {
	f.mu.Lock()
	n := len(f.libres)
	if n == 0 {
		f.mu.Unlock()
		f.log.Warn("No hay marcos libres")
		return 0, ErrSinMemoria
	}
	marco := f.libres[n-1]
	f.libres = f.libres[:n-1]
	f.enUso[marco] = true
	f.mu.Unlock()

	pa := f.direccionMarco(marco)
	llenar(f.Pagina(pa), rellenoAsignado)
	return pa, nil
}

// ReservarLimpio es Reservar con el marco puesto en cero
func (f *Fisica) ReservarLimpio() (uint64, error) {
	pa, err := f.Reservar()
	if err != nil {
		return 0, err
	}
	llenar(f.Pagina(pa), 0)
	return pa, nil
}

// Liberar devuelve el marco de pa a la lista de libres.
// Una dirección desalineada, fuera de rango o ya libre es un error fatal.
func (f *Fisica) Liberar(pa uint64) {
	marco := f.marcoDe(pa, "liberar")

	f.mu.Lock()
	if !f.enUso[marco] {
		f.mu.Unlock()
		utils.LoggerOPorDefecto(utils.ErrorLog).Error("Doble liberación de marco", "pa", fmt.Sprintf("0x%x", pa))
		panic("memoria: liberar: marco ya libre")
	}
	f.enUso[marco] = false
	llenar(f.Pagina(pa), rellenoLiberado)
	f.libres = append(f.libres, marco)
	f.mu.Unlock()
}

// Libres devuelve cuántos marcos quedan disponibles
func (f *Fisica) Libres() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.libres)
}

// Marcos devuelve la cantidad total de marcos
func (f *Fisica) Marcos() int {
	return f.marcos
}

// Pagina devuelve los bytes del marco que empieza en pa
func (f *Fisica) Pagina(pa uint64) []byte {
	marco := f.marcoDe(pa, "pagina")
	inicio := marco * TamPagina
	return f.ram[inicio : inicio+TamPagina : inicio+TamPagina]
}

// LeerPTE lee la entrada de 64 bits guardada en dir
func (f *Fisica) LeerPTE(dir uint64) PTE {
	off := f.offset(dir)
	return PTE(binary.LittleEndian.Uint64(f.ram[off : off+8]))
}

// EscribirPTE guarda la entrada pte en dir
func (f *Fisica) EscribirPTE(dir uint64, pte PTE) {
	off := f.offset(dir)
	binary.LittleEndian.PutUint64(f.ram[off:off+8], uint64(pte))
}

func (f *Fisica) direccionMarco(marco int) uint64 {
	return BaseKernel + uint64(marco)*TamPagina
}

func (f *Fisica) marcoDe(pa uint64, operacion string) int {
	if pa%TamPagina != 0 || pa < BaseKernel || pa >= BaseKernel+uint64(len(f.ram)) {
		panic(fmt.Sprintf("memoria: %s: dirección física inválida 0x%x", operacion, pa))
	}
	return int((pa - BaseKernel) / TamPagina)
}

func (f *Fisica) offset(dir uint64) uint64 {
	if dir%8 != 0 || dir < BaseKernel || dir+8 > BaseKernel+uint64(len(f.ram)) {
		panic(fmt.Sprintf("memoria: entrada de tabla fuera de la RAM 0x%x", dir))
	}
	return dir - BaseKernel
}

func llenar(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
