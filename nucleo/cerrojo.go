package nucleo

import (
	"sync"
	"sync/atomic"
)

// Cerrojo emula un spinlock del kernel: además de la exclusión mutua lleva
// la cuenta de cerrojos tomados por CPU para que sched pueda verificar que
// nadie se duerme con un cerrojo ajeno. La CPU puede ser nil cuando quien
// toma el cerrojo no corre sobre una CPU simulada (timer, consola).
//
// Como en xv6, un cerrojo puede tomarlo un hilo y liberarlo otro: el
// planificador toma el cerrojo de un hilo y el hilo lo libera al arrancar.
type Cerrojo struct {
	nombre string

	mu     sync.Mutex
	tomado atomic.Bool
	cpu    atomic.Pointer[CPU]
}

func (l *Cerrojo) iniciar(nombre string) {
	l.nombre = nombre
}

// Adquirir toma el cerrojo desde la CPU c
func (l *Cerrojo) Adquirir(c *CPU) {
	c.pushOff()
	if c != nil && l.Tomado(c) {
		panicKernel("acquire " + l.nombre)
	}
	l.mu.Lock()
	l.cpu.Store(c)
	l.tomado.Store(true)
}

// Liberar suelta el cerrojo desde la CPU c
func (l *Cerrojo) Liberar(c *CPU) {
	if c != nil && !l.Tomado(c) {
		panicKernel("release " + l.nombre)
	}
	l.cpu.Store(nil)
	l.tomado.Store(false)
	l.mu.Unlock()
	c.popOff()
}

// Tomado indica si la CPU c tiene el cerrojo
func (l *Cerrojo) Tomado(c *CPU) bool {
	return l.tomado.Load() && l.cpu.Load() == c
}
