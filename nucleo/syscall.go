package nucleo

import "fmt"

type llamadaSistema struct {
	nombre string
	fn     func(n *Nucleo, h *Hilo) int64
}

// La tabla se arma en init porque las llamadas vuelven a syscall
// a través de los hilos que crean.
var llamadas map[uint64]llamadaSistema

func init() {
	llamadas = map[uint64]llamadaSistema{
		SYS_fork: {"fork", func(n *Nucleo, h *Hilo) int64 { return int64(n.fork(h)) }},
		SYS_exit: {"exit", func(n *Nucleo, h *Hilo) int64 {
			n.exit(h, argEntero(h, 0))
			return 0
		}},
		SYS_wait: {"wait", func(n *Nucleo, h *Hilo) int64 { return int64(n.wait(h, h.tf.A0)) }},
		SYS_kill: {"kill", func(n *Nucleo, h *Hilo) int64 {
			if err := n.kill(h.cpu, argEntero(h, 0), argEntero(h, 1)); err != nil {
				n.log.Debug("kill falló", "pid", h.proc.pid, "error", err)
				return -1
			}
			return 0
		}},
		SYS_getpid: {"getpid", func(n *Nucleo, h *Hilo) int64 { return int64(h.proc.pid) }},
		SYS_sbrk:   {"sbrk", func(n *Nucleo, h *Hilo) int64 { return n.sbrk(h, int64(h.tf.A0)) }},
		SYS_sleep:  {"sleep", func(n *Nucleo, h *Hilo) int64 { return int64(n.dormir(h, argEntero(h, 0))) }},
		SYS_uptime: {"uptime", func(n *Nucleo, h *Hilo) int64 { return int64(n.uptime(h)) }},
		SYS_sigprocmask: {"sigprocmask", func(n *Nucleo, h *Hilo) int64 {
			return int64(n.sigprocmask(h, uint32(h.tf.A0)))
		}},
		SYS_sigaction: {"sigaction", func(n *Nucleo, h *Hilo) int64 {
			return int64(n.sigaction(h, argEntero(h, 0), h.tf.A1, h.tf.A2))
		}},
		SYS_sigret: {"sigret", func(n *Nucleo, h *Hilo) int64 {
			n.sigret(h)
			return 0
		}},
		SYS_kthread_create: {"kthread_create", func(n *Nucleo, h *Hilo) int64 {
			return int64(n.kthreadCreate(h, h.tf.A0, h.tf.A1))
		}},
		SYS_kthread_id: {"kthread_id", func(n *Nucleo, h *Hilo) int64 { return int64(h.tid) }},
		SYS_kthread_exit: {"kthread_exit", func(n *Nucleo, h *Hilo) int64 {
			n.kthreadExit(h, argEntero(h, 0))
			return 0
		}},
		SYS_kthread_join: {"kthread_join", func(n *Nucleo, h *Hilo) int64 {
			return int64(n.kthreadJoin(h, argEntero(h, 0), h.tf.A1))
		}},
		SYS_bsem_alloc: {"bsem_alloc", func(n *Nucleo, h *Hilo) int64 { return int64(n.bsemAlloc(h)) }},
		SYS_bsem_free:  {"bsem_free", func(n *Nucleo, h *Hilo) int64 { return int64(n.bsemFree(h, argEntero(h, 0))) }},
		SYS_bsem_down:  {"bsem_down", func(n *Nucleo, h *Hilo) int64 { return int64(n.bsemDown(h, argEntero(h, 0))) }},
		SYS_bsem_up:    {"bsem_up", func(n *Nucleo, h *Hilo) int64 { return int64(n.bsemUp(h, argEntero(h, 0))) }},
	}
}

// argEntero devuelve el argumento n como int de 32 bits con signo
func argEntero(h *Hilo, n int) int {
	return int(int32(h.tf.Argumento(n)))
}

// syscall despacha la llamada que está en a7 y deja el resultado en a0
func (n *Nucleo) syscall(h *Hilo) {
	num := h.tf.A7
	llamada, ok := llamadas[num]
	if !ok {
		n.log.Warn("Llamada al sistema desconocida", "pid", h.proc.pid, "tid", h.tid, "numero", num)
		h.tf.A0 = ^uint64(0)
		return
	}
	n.log.Debug(fmt.Sprintf("## PID: %d - Solicitó syscall: %s", h.proc.pid, llamada.nombre), "tid", h.tid)

	r := llamada.fn(n, h)
	// sigret deja en a0 lo que tenía el hilo antes de la señal
	if num != SYS_sigret {
		h.tf.A0 = uint64(r)
	}
}

// dormir duerme el hilo durante ticks interrupciones de timer
func (n *Nucleo) dormir(h *Hilo, ticks int) int {
	n.ticksLock.Adquirir(h.cpu)
	inicio := n.ticks
	for n.ticks-inicio < uint64(max(ticks, 0)) {
		if n.matado(h) {
			n.ticksLock.Liberar(h.cpu)
			return -1
		}
		n.sleep(h, &n.ticks, &n.ticksLock)
	}
	n.ticksLock.Liberar(h.cpu)
	return 0
}

// uptime devuelve los ticks desde el arranque
func (n *Nucleo) uptime(h *Hilo) uint64 {
	n.ticksLock.Adquirir(h.cpu)
	defer n.ticksLock.Liberar(h.cpu)
	return n.ticks
}
