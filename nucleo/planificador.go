package nucleo

import (
	"context"
	"time"
)

// planificador es el ciclo de cada CPU. Recorre la tabla de procesos y, en
// cada uno, la tabla de hilos; al encontrar un hilo listo le cede la CPU
// hasta que vuelva con sched. Termina cuando se cancela ctx.
func (n *Nucleo) planificador(ctx context.Context, c *CPU) error {
	c.contexto = contextoActual()
	c.hilo = nil

	espera := time.NewTicker(n.cfg.Intervalo())
	defer espera.Stop()

	for {
		if ctx.Err() != nil {
			n.log.Debug("CPU detenida", "cpu", c.id)
			return nil
		}

		// Habilitar interrupciones para no quedarse sin ellas
		// si todos los hilos esperan
		c.intrOn = true

		corrio := false
		for i := range n.procs {
			p := &n.procs[i]
			for j := range p.hilos {
				h := &p.hilos[j]
				h.lock.Adquirir(c)
				if h.estado == HiloListo {
					// El hilo libera su cerrojo y lo vuelve a tomar
					// antes de devolver la CPU
					h.estado = HiloCorriendo
					h.cpu = c
					c.hilo = h
					swtch(c.contexto, h.contexto)

					c.hilo = nil
					corrio = true
				}
				h.lock.Liberar(c)
			}
		}

		if !corrio {
			select {
			case <-ctx.Done():
			case <-n.timbre:
			case <-espera.C:
			}
		}
	}
}

// sched vuelve al planificador. Se llama con h.lock tomado y ningún otro
// cerrojo, y con el estado del hilo ya cambiado.
func (n *Nucleo) sched(h *Hilo) {
	c := h.cpu
	if !h.lock.Tomado(c) {
		panicKernel("sched thread->lock")
	}
	if c.noff != 1 {
		panicKernel("sched locks")
	}
	if h.estado == HiloCorriendo {
		panicKernel("sched running")
	}
	if c.intrOn {
		panicKernel("sched interruptible")
	}

	intena := c.intena
	swtch(h.contexto, c.contexto)
	// Puede haber vuelto en otra CPU
	h.cpu.intena = intena
}

// yield cede la CPU por una ronda del planificador
func (n *Nucleo) yield(h *Hilo) {
	h.lock.Adquirir(h.cpu)
	h.estado = HiloListo
	n.sched(h)
	h.lock.Liberar(h.cpu)
}

// sleep libera lk y duerme en canal. Vuelve con lk tomado.
func (n *Nucleo) sleep(h *Hilo, canal any, lk *Cerrojo) {
	// Con h.lock tomado nadie puede despertar al hilo antes de que
	// figure como dormido, así que se puede soltar lk.
	h.lock.Adquirir(h.cpu)
	lk.Liberar(h.cpu)

	h.canal = canal
	h.estado = HiloDurmiendo

	n.sched(h)

	h.canal = nil

	h.lock.Liberar(h.cpu)
	lk.Adquirir(h.cpu)
}

// wakeup despierta a todos los hilos que duermen en canal, salvo al que
// llama. Se llama sin ningún cerrojo de hilo tomado. yo es nil cuando
// despierta el timer.
func (n *Nucleo) wakeup(yo *Hilo, canal any) {
	var c *CPU
	if yo != nil {
		c = yo.cpu
	}
	desperto := false
	for i := range n.procs {
		p := &n.procs[i]
		for j := range p.hilos {
			t := &p.hilos[j]
			if t == yo {
				continue
			}
			t.lock.Adquirir(c)
			if t.estado == HiloDurmiendo && t.canal == canal {
				t.estado = HiloListo
				desperto = true
			}
			t.lock.Liberar(c)
		}
	}
	if desperto {
		n.tocarTimbre()
	}
}

// tocarTimbre avisa a las CPUs ociosas que hay trabajo
func (n *Nucleo) tocarTimbre() {
	select {
	case n.timbre <- struct{}{}:
	default:
	}
}

// canalEstacionado es el canal en el que duermen los hilos cuando el kernel se apaga
var canalEstacionado = new(int)

// estacionar deja al hilo dormido para siempre. Se usa al apagar el kernel
// para que las CPUs puedan terminar sin esperar a los hilos de usuario.
// Si algo lo despierta (un kill, el exit de otro hilo) vuelve a dormir.
func (n *Nucleo) estacionar(h *Hilo) {
	h.lock.Adquirir(h.cpu)
	for {
		h.canal = canalEstacionado
		h.estado = HiloDurmiendo
		n.sched(h)
	}
}
