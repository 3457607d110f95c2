package nucleo

import "fmt"

// kthreadCreate crea un hilo en el proceso del que llama que arranca en
// inicio con la pila que empieza en pila. Devuelve el tid o -1.
func (n *Nucleo) kthreadCreate(h *Hilo, inicio, pila uint64) int {
	p := h.proc

	p.lock.Adquirir(h.cpu)
	t, err := n.allocthread(h.cpu, p)
	if err != nil {
		p.lock.Liberar(h.cpu)
		n.log.Debug("kthread_create: no hay hilos libres", "pid", p.pid)
		return -1
	}

	t.tf = h.tf
	t.tf.KernelHartid = uint64(t.idx)
	t.tf.Epc = inicio
	t.tf.Sp = pila + uint64(n.cfg.TamPilaHilo) - 16
	t.estado = HiloListo
	tid := t.tid
	t.lock.Liberar(h.cpu)
	p.lock.Liberar(h.cpu)

	n.log.Info(fmt.Sprintf("## PID: %d - Crea hilo - TID: %d", p.pid, tid))
	n.tocarTimbre()
	return tid
}

// kthreadExit termina el hilo que llama. Si era el último hilo vivo
// termina el proceso con el mismo estado. No vuelve.
func (n *Nucleo) kthreadExit(h *Hilo, estado int) {
	p := h.proc

	n.waitLock.Adquirir(h.cpu)
	p.lock.Adquirir(h.cpu)
	if p.estado != ProcZombie && n.vivos(h.cpu, p, h) == 0 {
		p.lock.Liberar(h.cpu)
		n.waitLock.Liberar(h.cpu)
		n.exit(h, estado)
	}

	// Si termina dentro de un manejador, el proceso vuelve a recibir señales
	if p.manejando == h {
		p.mascara = p.mascaraRespaldo
		p.manejando = nil
	}

	h.lock.Adquirir(h.cpu)
	h.xstate = estado
	h.estado = HiloZombie
	h.lock.Liberar(h.cpu)

	// Quien espera en join duerme en el hilo, con p.lock
	n.wakeup(h, h)
	if p.estado == ProcZombie {
		n.wakeup(h, p.padre)
	}
	n.log.Debug("Hilo terminado", "pid", p.pid, "tid", h.tid, "estado", estado)

	h.lock.Adquirir(h.cpu)
	p.lock.Liberar(h.cpu)
	n.waitLock.Liberar(h.cpu)

	n.sched(h)
	panicKernel("zombie kthread_exit")
}

// kthreadJoin espera a que termine el hilo tid del mismo proceso, libera
// su entrada y copia su estado de salida en dir. Si dos hilos esperan al
// mismo, sólo uno lo encuentra zombie; el otro recibe -1.
func (n *Nucleo) kthreadJoin(h *Hilo, tid int, dir uint64) int {
	if tid == h.tid {
		return -1
	}
	p := h.proc

	p.lock.Adquirir(h.cpu)
	var t *Hilo
	for i := range p.hilos {
		tt := &p.hilos[i]
		if tt == h {
			continue
		}
		tt.lock.Adquirir(h.cpu)
		if tt.estado != HiloLibre && tt.tid == tid {
			t = tt
		}
		tt.lock.Liberar(h.cpu)
	}
	if t == nil {
		p.lock.Liberar(h.cpu)
		return -1
	}

	for {
		t.lock.Adquirir(h.cpu)
		if t.estado == HiloLibre || t.tid != tid {
			// Lo liberó otro join
			t.lock.Liberar(h.cpu)
			p.lock.Liberar(h.cpu)
			return -1
		}
		if t.estado == HiloZombie {
			estado := t.xstate
			n.freethread(t)
			t.lock.Liberar(h.cpu)

			var err error
			if dir != 0 {
				err = p.esp.CopiarHacia(dir, enteroLE(estado))
			}
			p.lock.Liberar(h.cpu)
			if err != nil {
				return -1
			}
			n.log.Debug("Hilo unido", "pid", p.pid, "tid", tid, "estado", estado)
			return 0
		}
		t.lock.Liberar(h.cpu)

		if n.matado(h) {
			p.lock.Liberar(h.cpu)
			return -1
		}
		n.sleep(h, t, &p.lock)
	}
}
