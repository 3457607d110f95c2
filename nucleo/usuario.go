package nucleo

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
)

// Programa es el código de un proceso: el de init o el que corre el hijo
// después de fork. Si vuelve, el proceso termina con exit(0).
type Programa func(u *Usuario)

// EntradaHilo es el código de un hilo creado con kthread_create. Si vuelve,
// el hilo termina con kthread_exit(0).
type EntradaHilo func(u *Usuario)

// Manejador es un manejador de señales de usuario
type Manejador func(u *Usuario, senal int)

// Primera dirección de texto. Queda por encima de los valores especiales
// de manejador (SIG_DFL, SIG_IGN y las acciones del kernel).
const baseTexto = 0x100

// Texto es el segmento de código de un proceso. Asocia direcciones con
// funciones de Go; saltar a una dirección sin código es una instrucción
// ilegal. Cada dirección ocupa 8 bytes para que la siguiente a un ecall
// (dirección + 4) sea distinta de cualquier otra.
type Texto struct {
	mu        sync.Mutex
	codigo    map[uint64]any
	siguiente uint64
}

func nuevoTexto() *Texto {
	return &Texto{
		codigo:    make(map[uint64]any),
		siguiente: baseTexto,
	}
}

// etiqueta reserva una dirección nueva
func (t *Texto) etiqueta() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	dir := t.siguiente
	t.siguiente += 8
	return dir
}

func (t *Texto) registrar(codigo any) uint64 {
	dir := t.etiqueta()
	t.registrarEn(dir, codigo)
	return dir
}

func (t *Texto) registrarEn(dir uint64, codigo any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.codigo[dir] = codigo
}

func (t *Texto) buscar(dir uint64) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.codigo[dir]
	return c, ok
}

func (t *Texto) quitar(dir uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.codigo, dir)
}

// Clonar copia el texto para el hijo de un fork
func (t *Texto) Clonar() *Texto {
	t.mu.Lock()
	defer t.mu.Unlock()
	nuevo := &Texto{
		codigo:    make(map[uint64]any, len(t.codigo)),
		siguiente: t.siguiente,
	}
	for dir, c := range t.codigo {
		nuevo.codigo[dir] = c
	}
	return nuevo
}

// Usuario es la vista que tiene de la máquina el código de usuario de un
// hilo. Todo lo que hace pasa por la MMU o entra al kernel con una trampa.
type Usuario struct {
	n *Nucleo
	h *Hilo
}

func (u *Usuario) texto() *Texto { return u.h.proc.texto }

// arrancar corre el hilo en modo usuario desde su pc. No vuelve: los
// programas terminan con exit o kthread_exit.
func (u *Usuario) arrancar() {
	for {
		u.ejecutar(u.h.tf.Epc)
	}
}

// ejecutar corre el código que está en pc
func (u *Usuario) ejecutar(pc uint64) {
	codigo, ok := u.texto().buscar(pc)
	if !ok {
		u.trampa(CausaInstruccionIlegal, pc)
		return
	}
	switch f := codigo.(type) {
	case Programa:
		f(u)
		u.Exit(0)
	case EntradaHilo:
		f(u)
		u.SalirHilo(0)
	case Manejador:
		ra := u.h.tf.Ra
		f(u, int(u.h.tf.A0))
		u.saltar(ra)
	default:
		u.trampa(CausaInstruccionIlegal, pc)
	}
}

// saltar continúa en ra al terminar un manejador. Lo normal es que ra
// apunte al trampolín de sigret en la pila.
func (u *Usuario) saltar(ra uint64) {
	var instr [8]byte
	u.Leer(ra, instr[:])
	if binary.LittleEndian.Uint32(instr[0:]) != instrLiSigret || binary.LittleEndian.Uint32(instr[4:]) != instrEcall {
		u.trampa(CausaInstruccionIlegal, ra)
		return
	}
	u.h.tf.A7 = SYS_sigret
	u.h.tf.Epc = ra + 4
	u.n.usertrap(u.h, CausaSyscall, 0)
}

// regresar corre lo que haga falta (manejadores de señales) hasta que el
// pc vuelva a esperado
func (u *Usuario) regresar(esperado uint64) {
	for u.h.tf.Epc != esperado {
		u.ejecutar(u.h.tf.Epc)
	}
}

// trampa entra al kernel por una causa que no es una llamada al sistema
func (u *Usuario) trampa(causa Causa, va uint64) {
	pc := u.texto().etiqueta()
	u.h.tf.Epc = pc
	u.n.usertrap(u.h, causa, va)
	u.regresar(pc)
}

// llamar hace la llamada al sistema num y devuelve a0
func (u *Usuario) llamar(num int, args ...uint64) uint64 {
	return u.llamarDesde(u.texto().etiqueta(), num, args...)
}

func (u *Usuario) llamarDesde(pc uint64, num int, args ...uint64) uint64 {
	tf := &u.h.tf
	tf.fijarArgumentos(args...)
	tf.A7 = uint64(num)
	tf.Epc = pc
	u.n.usertrap(u.h, CausaSyscall, 0)
	u.regresar(pc + 4)
	return u.h.tf.A0
}

// instruccion es el punto en el que el hilo puede recibir la interrupción de timer
func (u *Usuario) instruccion() {
	if u.n.apagando.Load() || u.h.cpu.timerPendiente.CompareAndSwap(true, false) {
		u.trampa(CausaTimer, 0)
	}
}

// Ciclo ejecuta una instrucción que no hace nada
func (u *Usuario) Ciclo() {
	u.instruccion()
}

func (u *Usuario) acceder(va uint64, buf []byte, escritura bool) {
	hecho := 0
	for hecho < len(buf) {
		u.instruccion()

		p := u.h.proc
		p.lock.Adquirir(u.h.cpu)
		n, err := p.esp.Acceder(va+uint64(hecho), buf[hecho:], escritura)
		p.lock.Liberar(u.h.cpu)
		hecho += n

		var fallo *memoria.FalloPagina
		switch {
		case err == nil:
		case errors.As(err, &fallo):
			u.trampa(CausaFalloPagina, fallo.VA)
		default:
			u.trampa(CausaSegmentacion, va+uint64(hecho))
		}
	}
}

// Leer copia memoria de usuario desde va en buf
func (u *Usuario) Leer(va uint64, buf []byte) {
	u.acceder(va, buf, false)
}

// Escribir copia buf en la memoria de usuario desde va
func (u *Usuario) Escribir(va uint64, buf []byte) {
	u.acceder(va, buf, true)
}

// LeerEntero lee un entero de 32 bits
func (u *Usuario) LeerEntero(va uint64) int {
	var b [4]byte
	u.Leer(va, b[:])
	return int(int32(binary.LittleEndian.Uint32(b[:])))
}

// EscribirEntero escribe un entero de 32 bits
func (u *Usuario) EscribirEntero(va uint64, v int) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(int32(v)))
	u.Escribir(va, b[:])
}

// conPila reserva tam bytes en la pila mientras corre f
func (u *Usuario) conPila(tam uint64, f func(sp uint64)) {
	u.h.tf.Sp -= tam
	f(u.h.tf.Sp)
	u.h.tf.Sp += tam
}

func entero(r uint64) int { return int(int32(r)) }

// Fork crea un proceso hijo que corre hijo. Devuelve el pid del hijo, o -1.
func (u *Usuario) Fork(hijo Programa) int {
	t := u.texto()
	pc := t.etiqueta()
	// El hijo vuelve de fork en la instrucción siguiente al ecall
	t.registrarEn(pc+4, hijo)
	pid := entero(u.llamarDesde(pc, SYS_fork))
	t.quitar(pc + 4)
	return pid
}

// Exit termina el proceso. No vuelve.
func (u *Usuario) Exit(estado int) {
	u.llamar(SYS_exit, uint64(estado))
	panic("exit volvió")
}

// Wait espera a que termine un hijo y devuelve su pid y su estado de salida
func (u *Usuario) Wait() (pid int, estado int) {
	u.conPila(16, func(sp uint64) {
		pid = entero(u.llamar(SYS_wait, sp))
		if pid >= 0 {
			estado = u.LeerEntero(sp)
		}
	})
	return pid, estado
}

// Kill le manda la señal sig al proceso pid
func (u *Usuario) Kill(pid, sig int) int {
	return entero(u.llamar(SYS_kill, uint64(pid), uint64(sig)))
}

// Pid devuelve el pid del proceso
func (u *Usuario) Pid() int {
	return entero(u.llamar(SYS_getpid))
}

// Sbrk cambia el tamaño de la memoria en delta bytes y devuelve el tamaño anterior, o -1
func (u *Usuario) Sbrk(delta int) int64 {
	return int64(u.llamar(SYS_sbrk, uint64(int64(delta))))
}

// Dormir duerme ticks interrupciones de timer
func (u *Usuario) Dormir(ticks int) int {
	return entero(u.llamar(SYS_sleep, uint64(ticks)))
}

// Uptime devuelve los ticks desde el arranque
func (u *Usuario) Uptime() uint64 {
	return u.llamar(SYS_uptime)
}

// Sigprocmask cambia la máscara de señales bloqueadas y devuelve la anterior
func (u *Usuario) Sigprocmask(mascara uint32) uint32 {
	return uint32(u.llamar(SYS_sigprocmask, uint64(mascara)))
}

// RegistrarManejador carga m en el texto del proceso y devuelve su dirección
// para usarla en una Accion
func (u *Usuario) RegistrarManejador(m Manejador) uint64 {
	return u.texto().registrar(m)
}

// Sigaction instala act para sig. Si vieja no es nil, deja ahí la acción anterior.
func (u *Usuario) Sigaction(sig int, act *Accion, vieja *Accion) int {
	var r int
	u.conPila(2*tamAccion, func(sp uint64) {
		var dirAct, dirVieja uint64
		if act != nil {
			var b [tamAccion]byte
			codificarAccion(b[:], *act)
			u.Escribir(sp, b[:])
			dirAct = sp
		}
		if vieja != nil {
			dirVieja = sp + tamAccion
		}
		r = entero(u.llamar(SYS_sigaction, uint64(sig), dirAct, dirVieja))
		if r == 0 && vieja != nil {
			var b [tamAccion]byte
			u.Leer(dirVieja, b[:])
			*vieja = decodificarAccion(b[:])
		}
	})
	return r
}

// Sigret vuelve de un manejador de señal
func (u *Usuario) Sigret() {
	u.llamar(SYS_sigret)
}

// CrearHilo crea un hilo que corre entrada con una pila nueva. Devuelve su tid, o -1.
func (u *Usuario) CrearHilo(entrada EntradaHilo) int {
	pila := u.Sbrk(u.n.cfg.TamPilaHilo)
	if pila < 0 {
		return -1
	}
	inicio := u.texto().registrar(entrada)
	return entero(u.llamar(SYS_kthread_create, inicio, uint64(pila)))
}

// Tid devuelve el tid del hilo
func (u *Usuario) Tid() int {
	return entero(u.llamar(SYS_kthread_id))
}

// SalirHilo termina el hilo. Si es el último, termina el proceso. No vuelve.
func (u *Usuario) SalirHilo(estado int) {
	u.llamar(SYS_kthread_exit, uint64(estado))
	panic("kthread_exit volvió")
}

// UnirHilo espera a que termine el hilo tid y devuelve su estado de salida.
// r es 0 si salió bien y -1 si no.
func (u *Usuario) UnirHilo(tid int) (estado int, r int) {
	u.conPila(16, func(sp uint64) {
		r = entero(u.llamar(SYS_kthread_join, uint64(tid), sp))
		if r == 0 {
			estado = u.LeerEntero(sp)
		}
	})
	return estado, r
}

// BsemAlloc reserva un semáforo binario
func (u *Usuario) BsemAlloc() int {
	return entero(u.llamar(SYS_bsem_alloc))
}

// BsemFree libera un semáforo binario
func (u *Usuario) BsemFree(s int) int {
	return entero(u.llamar(SYS_bsem_free, uint64(s)))
}

// BsemDown toma un semáforo binario
func (u *Usuario) BsemDown(s int) int {
	return entero(u.llamar(SYS_bsem_down, uint64(s)))
}

// BsemUp suelta un semáforo binario
func (u *Usuario) BsemUp(s int) int {
	return entero(u.llamar(SYS_bsem_up, uint64(s)))
}
