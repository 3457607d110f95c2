package nucleo

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
)

// userinit crea el primer proceso, que corre prog
func (n *Nucleo) userinit(prog Programa) error {
	p, h, err := n.allocproc(nil)
	if err != nil {
		return fmt.Errorf("creando init: %w", err)
	}
	defer p.lock.Liberar(nil)

	// Una página de texto y una de pila
	if _, err := p.esp.Crecer(paginasIniciales * memoria.TamPagina); err != nil {
		n.freeproc(nil, p)
		return fmt.Errorf("memoria de init: %w", err)
	}

	h.lock.Adquirir(nil)
	h.tf.Epc = p.texto.registrar(prog)
	h.tf.Sp = paginasIniciales * memoria.TamPagina
	h.estado = HiloListo
	h.lock.Liberar(nil)

	p.nombre = "init"
	n.initProc = p
	n.log.Info(fmt.Sprintf("## PID: %d - Proceso Creado - Tamaño: %d", p.pid, p.esp.Tam))
	return nil
}

// fork crea un proceso hijo copia del que llama. En el hijo el hilo que
// llamó vuelve de la llamada con 0.
func (n *Nucleo) fork(h *Hilo) int {
	p := h.proc

	np, nh, err := n.allocproc(h.cpu)
	if err != nil {
		n.log.Warn("fork: no se pudo crear el proceso", "pid", p.pid, "error", err)
		return -1
	}
	np.lock.Liberar(h.cpu)

	// Entre dos procesos, el cerrojo del padre va antes que el del hijo
	p.lock.Adquirir(h.cpu)
	np.lock.Adquirir(h.cpu)
	err = p.esp.Clonar(np.esp)
	np.lock.Liberar(h.cpu)
	mascara := p.mascara
	acciones := p.acciones
	texto := p.texto.Clonar()
	nombre := p.nombre
	p.lock.Liberar(h.cpu)

	if err != nil {
		n.log.Warn("fork: no se pudo copiar la memoria", "pid", p.pid, "error", err)
		np.lock.Adquirir(h.cpu)
		n.freeproc(h.cpu, np)
		np.lock.Liberar(h.cpu)
		return -1
	}

	np.lock.Adquirir(h.cpu)
	np.mascara = mascara
	np.acciones = acciones
	np.texto = texto
	np.nombre = nombre
	pid := np.pid
	np.lock.Liberar(h.cpu)

	n.waitLock.Adquirir(h.cpu)
	np.padre = p
	n.waitLock.Liberar(h.cpu)

	np.lock.Adquirir(h.cpu)
	nh.lock.Adquirir(h.cpu)
	nh.tf = h.tf
	nh.tf.KernelSatp = uint64(np.esp.Raiz)
	nh.tf.KernelHartid = uint64(nh.idx)
	// fork devuelve 0 en el hijo
	nh.tf.A0 = 0
	nh.estado = HiloListo
	nh.lock.Liberar(h.cpu)
	np.lock.Liberar(h.cpu)

	n.log.Info(fmt.Sprintf("## PID: %d - Proceso Creado - Padre: %d", pid, p.pid))
	n.tocarTimbre()
	return pid
}

// reparentar le pasa los hijos de p a init. Se llama con waitLock tomado.
func (n *Nucleo) reparentar(h *Hilo, p *Proceso) {
	for i := range n.procs {
		pp := &n.procs[i]
		if pp.padre == p {
			pp.padre = n.initProc
			n.wakeup(h, n.initProc)
		}
	}
}

// exit termina el proceso del hilo que llama. El proceso queda zombie
// hasta que el padre lo espere con wait. No vuelve.
func (n *Nucleo) exit(h *Hilo, estado int) {
	p := h.proc
	if p == n.initProc {
		panicKernel("init exiting")
	}

	n.waitLock.Adquirir(h.cpu)
	p.lock.Adquirir(h.cpu)
	if p.estado == ProcZombie {
		// Otro hilo ya terminó el proceso, este sólo tiene que irse
		p.lock.Liberar(h.cpu)
		n.waitLock.Liberar(h.cpu)
		n.kthreadExit(h, estado)
	}
	p.lock.Liberar(h.cpu)

	n.reparentar(h, p)

	// El padre puede estar durmiendo en wait
	n.wakeup(h, p.padre)

	p.lock.Adquirir(h.cpu)
	p.xstate = estado
	p.estado = ProcZombie
	n.log.Info(fmt.Sprintf("## PID: %d - Finaliza el proceso - Estado: %d", p.pid, estado))
	n.registrarMetricas(p)

	// Los demás hilos terminan la próxima vez que pasen por el kernel
	for i := range p.hilos {
		t := &p.hilos[i]
		if t == h {
			continue
		}
		t.lock.Adquirir(h.cpu)
		if t.estado != HiloLibre && t.estado != HiloZombie {
			t.matado.Store(true)
			if t.estado == HiloDurmiendo {
				t.estado = HiloListo
			}
		}
		t.lock.Liberar(h.cpu)
	}

	h.lock.Adquirir(h.cpu)
	h.xstate = estado
	h.estado = HiloZombie
	p.lock.Liberar(h.cpu)
	n.waitLock.Liberar(h.cpu)

	n.sched(h)
	panicKernel("zombie exit")
}

// wait espera a que termine un hijo, lo libera y devuelve su pid.
// Si dir no es 0 copia ahí el estado de salida. Devuelve -1 si el
// proceso no tiene hijos.
func (n *Nucleo) wait(h *Hilo, dir uint64) int {
	p := h.proc

	n.waitLock.Adquirir(h.cpu)
	for {
		hayHijos := false
		for i := range n.procs {
			np := &n.procs[i]
			if np.padre != p {
				continue
			}
			// Asegura que el hijo no siga en exit o en swtch
			np.lock.Adquirir(h.cpu)
			hayHijos = true
			if np.estado == ProcZombie {
				if n.forzarHilos(h.cpu, np) {
					pid := np.pid
					estado := np.xstate
					n.freeproc(h.cpu, np)
					np.lock.Liberar(h.cpu)
					n.waitLock.Liberar(h.cpu)
					n.log.Info(fmt.Sprintf("## PID: %d - Proceso Destruido - Padre: %d", pid, p.pid))

					if dir != 0 && n.copiarEntero(h, dir, estado) != nil {
						return -1
					}
					return pid
				}
			}
			np.lock.Liberar(h.cpu)
		}

		if !hayHijos || n.matado(h) {
			n.waitLock.Liberar(h.cpu)
			return -1
		}

		// El último hilo en terminar despierta al padre
		n.sleep(h, p, &n.waitLock)
	}
}

// forzarHilos marca para terminar a los hilos de un proceso zombie que
// siguen vivos y devuelve true si ya terminaron todos.
// Se llama con p.lock tomado.
func (n *Nucleo) forzarHilos(c *CPU, p *Proceso) bool {
	listos := true
	for i := range p.hilos {
		t := &p.hilos[i]
		t.lock.Adquirir(c)
		if t.estado != HiloLibre && t.estado != HiloZombie {
			listos = false
			t.matado.Store(true)
			if t.estado == HiloDurmiendo {
				t.estado = HiloListo
			}
		}
		t.lock.Liberar(c)
	}
	if !listos {
		n.tocarTimbre()
	}
	return listos
}

// copiarEntero escribe v como entero de 32 bits en la dirección de usuario dir
func (n *Nucleo) copiarEntero(h *Hilo, dir uint64, v int) error {
	p := h.proc
	p.lock.Adquirir(h.cpu)
	defer p.lock.Liberar(h.cpu)
	return p.esp.CopiarHacia(dir, enteroLE(v))
}

func enteroLE(v int) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	return b
}

// sbrk agranda o achica la memoria del proceso en delta bytes y devuelve el
// tamaño anterior. Si el proceso se pasa de su máximo de páginas termina.
func (n *Nucleo) sbrk(h *Hilo, delta int64) int64 {
	p := h.proc

	p.lock.Adquirir(h.cpu)
	viejo := p.esp.Tam
	var err error
	switch {
	case delta > 0:
		_, err = p.esp.Crecer(viejo + uint64(delta))
	case delta < 0:
		if uint64(-delta) > viejo {
			err = memoria.ErrDireccionInvalida
		} else {
			p.esp.Decrecer(viejo - uint64(-delta))
		}
	}
	p.lock.Liberar(h.cpu)

	if errors.Is(err, memoria.ErrPresupuestoExcedido) {
		n.log.Info(fmt.Sprintf("## PID: %d - Supera el máximo de páginas, se finaliza", p.pid))
		n.exit(h, -1)
	}
	if err != nil {
		n.log.Debug("sbrk falló", "pid", p.pid, "delta", delta, "error", err)
		return -1
	}
	return int64(viejo)
}

// terminar saca al hilo de circulación después de que lo mataron: si se
// mató al proceso termina el proceso, si no sólo el hilo
func (n *Nucleo) terminar(h *Hilo, estado int) {
	if h.proc.matado.Load() {
		n.exit(h, estado)
	}
	n.kthreadExit(h, estado)
}
