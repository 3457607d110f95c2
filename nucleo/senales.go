package nucleo

import (
	"encoding/binary"
	"fmt"
)

// Instrucciones del trampolín de sigret que se escribe en la pila de usuario
const (
	instrLiSigret uint32 = 0x01800893 // addi a7, x0, SYS_sigret
	instrEcall    uint32 = 0x00000073 // ecall
)

// tamAccion es lo que ocupa una acción en memoria de usuario: manejador,
// máscara y relleno
const tamAccion = 16

// kill marca la señal sig como pendiente en el proceso pid. SIGKILL además
// despierta a los hilos dormidos para que vean que tienen que terminar.
// c es nil cuando la señal viene de la consola. init no recibe señales.
func (n *Nucleo) kill(c *CPU, pid, sig int) error {
	if sig < 0 || sig >= NSIG {
		return fmt.Errorf("nucleo: señal inválida %d", sig)
	}
	for i := range n.procs {
		p := &n.procs[i]
		p.lock.Adquirir(c)
		if p.pid != pid || p.estado == ProcLibre {
			p.lock.Liberar(c)
			continue
		}
		if p == n.initProc {
			p.lock.Liberar(c)
			return fmt.Errorf("%w: %d", ErrInitProtegido, pid)
		}
		if p.estado == ProcZombie {
			// Ya terminó, la señal se descarta
			p.lock.Liberar(c)
			return fmt.Errorf("%w: %d", ErrProcesoInexistente, pid)
		}

		p.pendientes |= 1 << sig
		if sig == SIGKILL {
			p.matado.Store(true)
			for j := range p.hilos {
				t := &p.hilos[j]
				t.lock.Adquirir(c)
				if t.estado == HiloDurmiendo {
					t.estado = HiloListo
				}
				t.lock.Liberar(c)
			}
		}
		p.lock.Liberar(c)

		n.log.Info(fmt.Sprintf("## PID: %d - Recibe señal %d", pid, sig))
		n.tocarTimbre()
		return nil
	}
	return fmt.Errorf("%w: %d", ErrProcesoInexistente, pid)
}

// sigprocmask cambia la máscara de señales bloqueadas y devuelve la
// anterior. SIGKILL y SIGSTOP no se pueden bloquear.
func (n *Nucleo) sigprocmask(h *Hilo, mascara uint32) uint32 {
	p := h.proc
	p.lock.Adquirir(h.cpu)
	defer p.lock.Liberar(h.cpu)
	vieja := p.mascara
	p.mascara = mascara &^ senalesIntocables
	return vieja
}

// sigaction instala la acción que está en la dirección de usuario dirAct
// para sig y, si dirVieja no es 0, copia ahí la anterior
func (n *Nucleo) sigaction(h *Hilo, sig int, dirAct, dirVieja uint64) int {
	if sig < 0 || sig >= NSIG || sig == SIGKILL || sig == SIGSTOP {
		return -1
	}
	p := h.proc
	p.lock.Adquirir(h.cpu)
	defer p.lock.Liberar(h.cpu)

	vieja := p.acciones[sig]
	if dirAct != 0 {
		var b [tamAccion]byte
		if err := p.esp.CopiarDesde(b[:], dirAct); err != nil {
			return -1
		}
		act := decodificarAccion(b[:])
		if act.Mascara&senalesIntocables != 0 {
			return -1
		}
		p.acciones[sig] = act
	}
	if dirVieja != 0 {
		var b [tamAccion]byte
		codificarAccion(b[:], vieja)
		if err := p.esp.CopiarHacia(dirVieja, b[:]); err != nil {
			return -1
		}
	}
	return 0
}

func codificarAccion(b []byte, a Accion) {
	binary.LittleEndian.PutUint64(b[0:], a.Manejador)
	binary.LittleEndian.PutUint32(b[8:], a.Mascara)
	binary.LittleEndian.PutUint32(b[12:], 0)
}

func decodificarAccion(b []byte) Accion {
	return Accion{
		Manejador: binary.LittleEndian.Uint64(b[0:]),
		Mascara:   binary.LittleEndian.Uint32(b[8:]),
	}
}

// sigret vuelve de un manejador: restaura los registros y la máscara que
// había antes de entregar la señal
func (n *Nucleo) sigret(h *Hilo) {
	p := h.proc
	p.lock.Adquirir(h.cpu)
	defer p.lock.Liberar(h.cpu)
	if p.manejando != h {
		n.log.Debug("sigret fuera de un manejador", "pid", p.pid, "tid", h.tid)
		return
	}
	h.tf = h.respaldo
	p.mascara = p.mascaraRespaldo
	p.manejando = nil
	n.log.Debug("Vuelve del manejador de señal", "pid", p.pid, "tid", h.tid)
}

// procesarSenales atiende las señales pendientes del proceso antes de
// volver a modo usuario. Se llama con p.lock tomado. Entrega a lo sumo un
// manejador de usuario por vez.
func (n *Nucleo) procesarSenales(h *Hilo) {
	p := h.proc
	for sig := 0; sig < NSIG; sig++ {
		bit := uint32(1) << sig
		if p.pendientes&bit == 0 {
			continue
		}
		if p.mascara&bit != 0 && bit&senalesIntocables == 0 {
			continue
		}

		act := p.acciones[sig]
		switch act.Manejador {
		case SIG_IGN:
			p.pendientes &^= bit
		case SIG_DFL:
			p.pendientes &^= bit
			n.accionNucleo(p, sig)
		case SIGKILL, SIGSTOP, SIGCONT:
			p.pendientes &^= bit
			n.accionNucleo(p, int(act.Manejador))
		default:
			if p.manejando != nil {
				continue
			}
			p.pendientes &^= bit
			n.entregar(h, sig, act)
		}
	}
}

// accionNucleo hace lo que el kernel hace por su cuenta con una señal
func (n *Nucleo) accionNucleo(p *Proceso, accion int) {
	switch accion {
	case SIGSTOP:
		p.congelado = true
		n.log.Info(fmt.Sprintf("## PID: %d - Detenido", p.pid))
	case SIGCONT:
		if p.congelado {
			p.congelado = false
			n.log.Info(fmt.Sprintf("## PID: %d - Continúa", p.pid))
		}
	default:
		p.matado.Store(true)
	}
}

// entregar desvía al hilo hacia el manejador de usuario de sig. Guarda los
// registros y la máscara, arma en la pila de usuario una copia del
// trapframe y el trampolín de sigret, y hace que el hilo vuelva a modo
// usuario en el manejador con la señal en a0 y el trampolín en ra.
func (n *Nucleo) entregar(h *Hilo, sig int, act Accion) {
	p := h.proc

	h.respaldo = h.tf
	p.mascaraRespaldo = p.mascara
	p.mascara = act.Mascara &^ senalesIntocables
	p.manejando = h

	sp := h.tf.Sp - tamTrapframe
	marco := make([]byte, tamTrapframe)
	h.tf.Codificar(marco)
	if err := p.esp.CopiarHacia(sp, marco); err != nil {
		n.log.Warn("No se pudo copiar el trapframe a la pila", "pid", p.pid, "error", err)
		p.matado.Store(true)
		return
	}

	sp -= 16
	var trampolin [16]byte
	binary.LittleEndian.PutUint32(trampolin[0:], instrLiSigret)
	binary.LittleEndian.PutUint32(trampolin[4:], instrEcall)
	if err := p.esp.CopiarHacia(sp, trampolin[:]); err != nil {
		n.log.Warn("No se pudo copiar el trampolín a la pila", "pid", p.pid, "error", err)
		p.matado.Store(true)
		return
	}

	h.tf.Sp = sp
	h.tf.Ra = sp
	h.tf.A0 = uint64(sig)
	h.tf.Epc = act.Manejador
	n.log.Info(fmt.Sprintf("## PID: %d - Entrega señal %d - TID: %d", p.pid, sig, h.tid))
}

// esperarContinuar deja al hilo cediendo la CPU mientras el proceso esté
// detenido. Se llama y vuelve con p.lock tomado.
func (n *Nucleo) esperarContinuar(h *Hilo) {
	p := h.proc
	for p.congelado && !n.matado(h) {
		if p.pendientes&(1<<SIGCONT) != 0 {
			p.pendientes &^= 1 << SIGCONT
			p.congelado = false
			n.log.Info(fmt.Sprintf("## PID: %d - Continúa", p.pid))
			break
		}
		p.lock.Liberar(h.cpu)
		n.yield(h)
		p.lock.Adquirir(h.cpu)
	}
}
