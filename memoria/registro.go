package memoria

// EntradaPagina describe una página de usuario que lleva el registro
// de residencia de un proceso
type EntradaPagina struct {
	Usada    bool
	VA       uint64
	EnRAM    bool
	Offset   int64  // posición en el archivo de swap, -1 si está en RAM
	Contador uint32 // edad para NFUA y LAPA
	Tiempo   uint32 // orden de llegada para SCFIFO
}

// Registro es la tabla de residencia de un proceso: dónde vive cada
// página de usuario y cuántas hay en RAM y en swap
type Registro struct {
	Entradas []EntradaPagina
	EnRAM    int
	EnDisco  int
	TamSwap  int64  // mayor offset usado en el archivo de swap
	Reloj    uint32 // reloj lógico para SCFIFO
}

func nuevoRegistro(maxPaginas int) Registro {
	return Registro{Entradas: make([]EntradaPagina, maxPaginas)}
}

// Reiniciar deja el registro vacío sin perder la capacidad
func (r *Registro) Reiniciar() {
	for i := range r.Entradas {
		r.Entradas[i] = EntradaPagina{}
	}
	r.EnRAM = 0
	r.EnDisco = 0
	r.TamSwap = 0
	r.Reloj = 0
}

// CopiarDe duplica el contenido de otro registro de igual capacidad
func (r *Registro) CopiarDe(otro *Registro) {
	copy(r.Entradas, otro.Entradas)
	r.EnRAM = otro.EnRAM
	r.EnDisco = otro.EnDisco
	r.TamSwap = otro.TamSwap
	r.Reloj = otro.Reloj
}

// Libre devuelve el índice de una entrada sin usar, o -1
func (r *Registro) Libre() int {
	for i := range r.Entradas {
		if !r.Entradas[i].Usada {
			return i
		}
	}
	return -1
}

// Buscar devuelve el índice de la entrada de va con la residencia pedida, o -1
func (r *Registro) Buscar(va uint64, enRAM bool) int {
	for i := range r.Entradas {
		e := &r.Entradas[i]
		if e.Usada && e.VA == va && e.EnRAM == enRAM {
			return i
		}
	}
	return -1
}

// Total devuelve cuántas páginas registra el proceso
func (r *Registro) Total() int {
	return r.EnRAM + r.EnDisco
}

func (r *Registro) siguienteTiempo() uint32 {
	r.Reloj++
	return r.Reloj
}

// agregarRAM marca la entrada i como página residente en va
func (r *Registro) agregarRAM(i int, va uint64, pol Politica) {
	r.Entradas[i] = EntradaPagina{Usada: true, VA: va, EnRAM: true, Offset: -1}
	pol.AlIngresar(&r.Entradas[i], r)
	r.EnRAM++
}

// agregarDisco marca la entrada i como página en swap en offset
func (r *Registro) agregarDisco(i int, va uint64, offset int64) {
	r.Entradas[i] = EntradaPagina{Usada: true, VA: va, EnRAM: false, Offset: offset}
	r.EnDisco++
	if fin := offset + TamPagina; fin > r.TamSwap {
		r.TamSwap = fin
	}
}

// quitar libera la entrada i y ajusta los contadores
func (r *Registro) quitar(i int) {
	if r.Entradas[i].EnRAM {
		r.EnRAM--
	} else {
		r.EnDisco--
	}
	r.Entradas[i] = EntradaPagina{}
}

// offsetLibre devuelve el menor offset de swap que ninguna página ocupa
func (r *Registro) offsetLibre() int64 {
	for off := int64(0); ; off += TamPagina {
		ocupado := false
		for i := range r.Entradas {
			e := &r.Entradas[i]
			if e.Usada && !e.EnRAM && e.Offset == off {
				ocupado = true
				break
			}
		}
		if !ocupado {
			return off
		}
	}
}
