package memoria

import (
	"fmt"
)

// Direccion indica qué hace un intercambio de páginas
type Direccion int

const (
	// Completo baja la víctima al swap y sube la página entrante en su lugar
	Completo Direccion = iota
	// HaciaDisco solo baja la víctima para hacer lugar a una página nueva
	HaciaDisco
)

func (d Direccion) String() string {
	if d == Completo {
		return "COMPLETO"
	}
	return "HACIA_DISCO"
}

// ReemplazarPagina elige una víctima con la política del espacio y la baja
// al swap. Con Completo además sube entrante desde el swap.
func (e *Espacio) ReemplazarPagina(entrante uint64, dir Direccion) error {
	i := e.cfg.Politica.ElegirVictima(e)
	if i < 0 {
		panic(fmt.Sprintf("memoria: reemplazar: sin víctima (pid %d, politica %s)", e.pid, e.cfg.Politica.Nombre()))
	}
	victima := e.Registro.Entradas[i].VA
	e.log.Debug("Víctima elegida", "pid", e.pid, "politica", e.cfg.Politica.Nombre(), "va", victima)
	_, err := e.IntercambioDoble(victima, entrante, dir)
	return err
}

// IntercambioDoble baja la página residente victima al swap y, con Completo,
// sube la página entrante que estaba en swap. Devuelve el índice del
// registro que quedó libre (HaciaDisco) u ocupado por la entrante (Completo).
// Si faltan las entradas del registro es un error fatal del kernel.
func (e *Espacio) IntercambioDoble(victima, entrante uint64, dir Direccion) (int, error) {
	dirVictima, ok := e.fisica.Recorrer(e.Raiz, victima, false)
	if !ok {
		panic(fmt.Sprintf("memoria: intercambio: víctima 0x%x sin tabla", victima))
	}
	pteVictima := e.fisica.LeerPTE(dirVictima)
	if !pteVictima.Valida() {
		panic(fmt.Sprintf("memoria: intercambio: víctima 0x%x no residente", victima))
	}
	iRAM := e.Registro.Buscar(victima, true)
	if iRAM < 0 {
		panic(fmt.Sprintf("memoria: intercambio: víctima 0x%x fuera del registro", victima))
	}

	swap, err := e.archivo()
	if err != nil {
		return -1, err
	}

	var (
		iDisco      int
		offset      int64
		dirEntrante uint64
		pteEntrante PTE
		nuevo       uint64
		contenido   []byte
	)
	if dir == Completo {
		iDisco = e.Registro.Buscar(entrante, false)
		if iDisco < 0 {
			panic(fmt.Sprintf("memoria: intercambio: entrante 0x%x fuera del registro", entrante))
		}
		dirEntrante, ok = e.fisica.Recorrer(e.Raiz, entrante, false)
		if !ok {
			panic(fmt.Sprintf("memoria: intercambio: entrante 0x%x sin tabla", entrante))
		}
		pteEntrante = e.fisica.LeerPTE(dirEntrante)
		if !pteEntrante.EnSwap() {
			panic(fmt.Sprintf("memoria: intercambio: entrante 0x%x no está en swap", entrante))
		}
		offset = e.Registro.Entradas[iDisco].Offset

		// La entrante se lee antes de que la víctima pise su lugar en el swap
		if nuevo, err = e.fisica.Reservar(); err != nil {
			return -1, err
		}
		contenido = make([]byte, TamPagina)
		if _, err = swap.ReadAt(contenido, offset); err != nil {
			e.fisica.Liberar(nuevo)
			return -1, err
		}
	} else {
		iDisco = e.Registro.Libre()
		if iDisco < 0 {
			panic(fmt.Sprintf("memoria: intercambio: registro lleno (pid %d)", e.pid))
		}
		offset = e.Registro.offsetLibre()
	}

	// La víctima deja de ser válida antes de tocar el swap
	e.fisica.EscribirPTE(dirVictima, pteVictima&^PteV)
	marco := pteVictima.DirFisica()
	if _, err = swap.WriteAt(e.fisica.Pagina(marco), offset); err != nil {
		e.fisica.EscribirPTE(dirVictima, pteVictima)
		if nuevo != 0 {
			e.fisica.Liberar(nuevo)
		}
		return -1, err
	}
	e.fisica.Liberar(marco)
	e.fisica.EscribirPTE(dirVictima, pteVictima.Flags()&^(PteV|PteA|PteD)|PtePG)

	e.Registro.quitar(iRAM)
	if dir == Completo {
		e.Registro.quitar(iDisco)
	}
	e.Registro.agregarDisco(iDisco, victima, offset)
	e.metricaBajada()
	e.log.Info(fmt.Sprintf("## PID: %d - Página movida a SWAP - VA: 0x%x - Offset: %d", e.pid, victima, offset))

	if dir == Completo {
		copy(e.fisica.Pagina(nuevo), contenido)
		e.fisica.EscribirPTE(dirEntrante, pteEntrante.Flags()&^(PtePG|PteA|PteD)|PAaPTE(nuevo)|PteV)
		e.Registro.agregarRAM(iRAM, entrante, e.cfg.Politica)
		e.metricaSubida()
		e.log.Info(fmt.Sprintf("## PID: %d - Página recuperada de SWAP - VA: 0x%x", e.pid, entrante))
	}

	return iRAM, nil
}

// traer sube la página va desde el swap cuando todavía hay lugar en RAM
func (e *Espacio) traer(va uint64, dir uint64, pte PTE) error {
	iDisco := e.Registro.Buscar(va, false)
	if iDisco < 0 {
		panic(fmt.Sprintf("memoria: traer: 0x%x fuera del registro", va))
	}
	swap, err := e.archivo()
	if err != nil {
		return err
	}
	nuevo, err := e.fisica.Reservar()
	if err != nil {
		return err
	}
	if _, err := swap.ReadAt(e.fisica.Pagina(nuevo), e.Registro.Entradas[iDisco].Offset); err != nil {
		e.fisica.Liberar(nuevo)
		return err
	}
	e.fisica.EscribirPTE(dir, pte.Flags()&^(PtePG|PteA|PteD)|PAaPTE(nuevo)|PteV)
	e.Registro.quitar(iDisco)
	e.Registro.agregarRAM(iDisco, va, e.cfg.Politica)
	e.metricaSubida()
	e.log.Info(fmt.Sprintf("## PID: %d - Página recuperada de SWAP - VA: 0x%x", e.pid, va))
	return nil
}

// ManejarFallo atiende un fallo de página en va. Si la página está en swap
// la sube, desalojando otra si el proceso está en su máximo de páginas en
// RAM. Una dirección que no está en swap devuelve ErrDireccionInvalida.
func (e *Espacio) ManejarFallo(va uint64) error {
	va = RedondearAbajo(va)
	if va >= MaxVA {
		return ErrDireccionInvalida
	}
	dir, ok := e.fisica.Recorrer(e.Raiz, va, false)
	if !ok {
		return ErrDireccionInvalida
	}
	pte := e.fisica.LeerPTE(dir)
	if pte.Valida() {
		// Otro hilo del proceso ya la trajo
		return nil
	}
	if !pte.EnSwap() || !e.paginado {
		return ErrDireccionInvalida
	}

	e.metricaFallo()
	e.log.Debug("Atendiendo fallo de página", "pid", e.pid, "va", va)

	if e.Registro.EnRAM < e.cfg.MaxPaginasFisicas {
		return e.traer(va, dir, pte)
	}
	return e.ReemplazarPagina(va, Completo)
}
