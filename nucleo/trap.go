package nucleo

import (
	"context"
	"fmt"
	"time"
)

// Causa es el motivo por el que un hilo entra al kernel desde modo usuario
type Causa int

const (
	CausaSyscall Causa = iota
	CausaTimer
	CausaFalloPagina
	CausaSegmentacion
	CausaInstruccionIlegal
)

func (c Causa) String() string {
	switch c {
	case CausaSyscall:
		return "syscall"
	case CausaTimer:
		return "timer"
	case CausaFalloPagina:
		return "fallo de página"
	case CausaSegmentacion:
		return "segmentation fault"
	case CausaInstruccionIlegal:
		return "instrucción ilegal"
	}
	return "desconocida"
}

// forkret es donde arranca cada hilo nuevo la primera vez que el
// planificador lo elige
func (n *Nucleo) forkret(h *Hilo) {
	// Sigue con el cerrojo que tomó el planificador
	h.lock.Liberar(h.cpu)

	n.usertrapret(h)
	u := &Usuario{n: n, h: h}
	u.arrancar()
}

// usertrap atiende una trampa desde modo usuario. va es la dirección que
// falló cuando la causa es un fallo de página o de segmentación.
func (n *Nucleo) usertrap(h *Hilo, causa Causa, va uint64) {
	if n.apagando.Load() {
		n.estacionar(h)
	}
	p := h.proc

	switch causa {
	case CausaSyscall:
		if n.matado(h) {
			n.terminar(h, -1)
		}
		// Volver a la instrucción siguiente al ecall
		h.tf.Epc += 4
		n.syscall(h)

	case CausaTimer:
		p.lock.Adquirir(h.cpu)
		p.esp.Envejecer()
		p.lock.Liberar(h.cpu)
		n.yield(h)

	case CausaFalloPagina:
		p.lock.Adquirir(h.cpu)
		err := p.esp.ManejarFallo(va)
		p.lock.Liberar(h.cpu)
		if err != nil {
			n.log.Warn("No se pudo atender el fallo de página", "pid", p.pid, "va", fmt.Sprintf("0x%x", va), "error", err)
			p.matado.Store(true)
		}

	default:
		n.log.Info(fmt.Sprintf("## PID: %d - usertrap(): %s - sepc=0x%x stval=0x%x", p.pid, causa, h.tf.Epc, va))
		p.matado.Store(true)
	}

	if n.matado(h) {
		n.terminar(h, -1)
	}
	n.usertrapret(h)
}

// usertrapret prepara la vuelta a modo usuario: entrega las señales
// pendientes, espera si el proceso está detenido y deja los registros del
// hilo en su lugar del marco de trap.
func (n *Nucleo) usertrapret(h *Hilo) {
	p := h.proc

	p.lock.Adquirir(h.cpu)
	n.procesarSenales(h)
	if p.congelado {
		n.esperarContinuar(h)
		n.procesarSenales(h)
	}
	p.lock.Liberar(h.cpu)

	if n.matado(h) {
		n.terminar(h, -1)
	}

	p.lock.Adquirir(h.cpu)
	h.tf.Codificar(n.fisica.Pagina(p.marcoTrap)[h.idx*tamTrapframe:])
	p.lock.Liberar(h.cpu)
}

// reloj genera las interrupciones de timer hasta que se cancele ctx
func (n *Nucleo) reloj(ctx context.Context) error {
	t := time.NewTicker(n.cfg.Intervalo())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.clockintr()
		}
	}
}

// clockintr avanza los ticks, despierta a los que esperan en sleep y
// marca una interrupción pendiente en cada CPU
func (n *Nucleo) clockintr() {
	n.ticksLock.Adquirir(nil)
	n.ticks++
	n.ticksLock.Liberar(nil)
	n.wakeup(nil, &n.ticks)

	for _, c := range n.cpus {
		c.timerPendiente.Store(true)
	}
	n.tocarTimbre()
}
