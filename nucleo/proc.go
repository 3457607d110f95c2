package nucleo

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
)

// ErrTablaLlena indica que no quedan entradas libres en la tabla de procesos o de hilos
var ErrTablaLlena = errors.New("nucleo: tabla llena")

type EstadoHilo int

const (
	HiloLibre EstadoHilo = iota
	HiloUsado
	HiloDurmiendo
	HiloListo
	HiloCorriendo
	HiloZombie
)

func (e EstadoHilo) String() string {
	switch e {
	case HiloLibre:
		return "unused"
	case HiloUsado:
		return "used"
	case HiloDurmiendo:
		return "sleep"
	case HiloListo:
		return "runble"
	case HiloCorriendo:
		return "run"
	case HiloZombie:
		return "zombie"
	}
	return "???"
}

type EstadoProceso int

const (
	ProcLibre EstadoProceso = iota
	ProcUsado
	ProcZombie
)

func (e EstadoProceso) String() string {
	switch e {
	case ProcLibre:
		return "unused"
	case ProcUsado:
		return "used"
	case ProcZombie:
		return "zombie"
	}
	return "???"
}

// Hilo es un hilo del kernel. Corre en su propia goroutine, pero sólo
// mientras una CPU le haya cedido el control con swtch.
type Hilo struct {
	lock Cerrojo

	// h.lock tomado
	estado EstadoHilo
	canal  any // si no es nil, duerme en canal
	xstate int
	tid    int

	matado atomic.Bool

	// privados del hilo, no hace falta el cerrojo
	proc     *Proceso
	idx      int
	cpu      *CPU
	contexto *Contexto
	tf       Trapframe
	respaldo Trapframe // registros de usuario mientras corre un manejador de señal
}

// Accion es la entrada de la tabla de manejadores de un proceso
type Accion struct {
	Manejador uint64
	Mascara   uint32
}

// Proceso es una entrada de la tabla de procesos
type Proceso struct {
	lock Cerrojo

	// p.lock tomado
	estado EstadoProceso
	pid    int
	xstate int

	matado atomic.Bool

	// waitLock tomado
	padre *Proceso

	// p.lock tomado
	esp       *memoria.Espacio
	marcoTrap uint64 // marco de los trapframes de todos los hilos
	nombre    string
	texto     *Texto

	pendientes      uint32
	mascara         uint32
	mascaraRespaldo uint32
	acciones        [NSIG]Accion
	manejando       *Hilo // hilo que corre un manejador de usuario
	congelado       bool

	hilos []Hilo
}

// Pid devuelve el pid del proceso
func (p *Proceso) Pid() int { return p.pid }

func (n *Nucleo) iniciarTablas() {
	n.procs = make([]Proceso, n.cfg.CantidadProcesos)
	for i := range n.procs {
		p := &n.procs[i]
		p.lock.iniciar("proc")
		p.esp = memoria.NuevoEspacio(n.fisica, memoria.ConfigEspacio{
			MaxPaginasFisicas: n.cfg.MaxPaginasFisicas,
			MaxPaginasTotales: n.cfg.MaxPaginasTotales,
			Politica:          n.politica,
			Almacen:           n.almacen,
		}, n.log)
		p.hilos = make([]Hilo, n.cfg.HilosPorProceso)
		for j := range p.hilos {
			h := &p.hilos[j]
			h.lock.iniciar("thread")
			h.proc = p
			h.idx = j
		}
	}
}

func (n *Nucleo) allocpid(c *CPU) int {
	n.pidLock.Adquirir(c)
	defer n.pidLock.Liberar(c)
	pid := n.siguientePid
	n.siguientePid++
	return pid
}

func (n *Nucleo) alloctid(c *CPU) int {
	n.tidLock.Adquirir(c)
	defer n.tidLock.Liberar(c)
	tid := n.siguienteTid
	n.siguienteTid++
	return tid
}

// allocproc busca una entrada libre en la tabla de procesos y la prepara
// con su espacio de direcciones, su marco de trap y su hilo principal.
// Devuelve el proceso con p.lock tomado y el hilo principal sin su cerrojo.
func (n *Nucleo) allocproc(c *CPU) (*Proceso, *Hilo, error) {
	var p *Proceso
	for i := range n.procs {
		q := &n.procs[i]
		q.lock.Adquirir(c)
		if q.estado == ProcLibre {
			p = q
			break
		}
		q.lock.Liberar(c)
	}
	if p == nil {
		return nil, nil, ErrTablaLlena
	}

	p.pid = n.allocpid(c)
	p.estado = ProcUsado

	h, err := n.prepararProceso(c, p)
	if err != nil {
		n.freeproc(c, p)
		p.lock.Liberar(c)
		return nil, nil, err
	}
	h.lock.Liberar(c)
	return p, h, nil
}

func (n *Nucleo) prepararProceso(c *CPU, p *Proceso) (*Hilo, error) {
	marco, err := n.fisica.ReservarLimpio()
	if err != nil {
		return nil, fmt.Errorf("marco de trap del pid %d: %w", p.pid, err)
	}
	p.marcoTrap = marco

	if err := p.esp.Preparar(p.pid); err != nil {
		return nil, fmt.Errorf("tabla de páginas del pid %d: %w", p.pid, err)
	}
	if err := n.fisica.Mapear(p.esp.Raiz, memoria.Trampolin, memoria.TamPagina, n.trampolin, memoria.PteR|memoria.PteX); err != nil {
		return nil, fmt.Errorf("trampolín del pid %d: %w", p.pid, err)
	}
	if err := n.fisica.Mapear(p.esp.Raiz, memoria.MarcoTrap, memoria.TamPagina, marco, memoria.PteR|memoria.PteW); err != nil {
		return nil, fmt.Errorf("marco de trap del pid %d: %w", p.pid, err)
	}

	h, err := n.allocthread(c, p)
	if err != nil {
		return nil, err
	}

	p.pendientes = 0
	p.mascara = 0
	p.mascaraRespaldo = 0
	p.acciones = [NSIG]Accion{}
	p.manejando = nil
	p.congelado = false
	p.matado.Store(false)
	p.texto = nuevoTexto()
	return h, nil
}

// allocthread busca un hilo libre en p. Se llama con p.lock tomado y
// devuelve el hilo con su cerrojo tomado, listo para arrancar en forkret.
func (n *Nucleo) allocthread(c *CPU, p *Proceso) (*Hilo, error) {
	for i := range p.hilos {
		h := &p.hilos[i]
		h.lock.Adquirir(c)
		if h.estado == HiloLibre {
			h.tid = n.alloctid(c)
			h.estado = HiloUsado
			h.matado.Store(false)
			h.tf = Trapframe{
				KernelSatp:   uint64(p.esp.Raiz),
				KernelTrap:   memoria.Trampolin,
				KernelHartid: uint64(h.idx),
			}
			h.contexto = nuevoContexto(func() { n.forkret(h) })
			return h, nil
		}
		h.lock.Liberar(c)
	}
	return nil, ErrTablaLlena
}

// freethread devuelve el hilo a la tabla. Se llama con h.lock tomado.
// Si la goroutine del hilo quedó esperando en swtch, termina.
func (n *Nucleo) freethread(h *Hilo) {
	if h.contexto != nil {
		h.contexto.descartar()
		h.contexto = nil
	}
	h.tid = 0
	h.canal = nil
	h.xstate = 0
	h.matado.Store(false)
	h.cpu = nil
	h.tf = Trapframe{}
	h.respaldo = Trapframe{}
	h.estado = HiloLibre
}

// freeproc libera todo lo del proceso, incluidos sus hilos.
// Se llama con p.lock tomado.
func (n *Nucleo) freeproc(c *CPU, p *Proceso) {
	for i := range p.hilos {
		h := &p.hilos[i]
		h.lock.Adquirir(c)
		if h.estado != HiloLibre {
			n.freethread(h)
		}
		h.lock.Liberar(c)
	}

	if p.esp.Raiz != 0 {
		for _, va := range []uint64{memoria.Trampolin, memoria.MarcoTrap} {
			if pte, ok := n.fisica.BuscarPTE(p.esp.Raiz, va); ok && pte.Valida() {
				n.fisica.Desmapear(p.esp.Raiz, va, 1, false, nil)
			}
		}
		p.esp.Liberar()
	}
	if p.marcoTrap != 0 {
		n.fisica.Liberar(p.marcoTrap)
		p.marcoTrap = 0
	}

	p.pid = 0
	p.padre = nil
	p.nombre = ""
	p.xstate = 0
	p.matado.Store(false)
	p.texto = nil
	p.pendientes = 0
	p.mascara = 0
	p.manejando = nil
	p.congelado = false
	p.estado = ProcLibre
}

// matado indica si el hilo o su proceso fueron marcados para terminar
func (n *Nucleo) matado(h *Hilo) bool {
	return h.matado.Load() || h.proc.matado.Load()
}

// vivos cuenta los hilos de p, además de excepto, que no terminaron.
// Se llama con p.lock tomado.
func (n *Nucleo) vivos(c *CPU, p *Proceso, excepto *Hilo) int {
	cuenta := 0
	for i := range p.hilos {
		t := &p.hilos[i]
		if t == excepto {
			continue
		}
		t.lock.Adquirir(c)
		if t.estado != HiloLibre && t.estado != HiloZombie {
			cuenta++
		}
		t.lock.Liberar(c)
	}
	return cuenta
}
