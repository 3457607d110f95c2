package nucleo

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// CPU es un procesador simulado. Cada CPU es una goroutine que corre el
// planificador y le pasa el control a un hilo por vez.
type CPU struct {
	id       int
	hilo     *Hilo     // hilo que está corriendo, nil si ninguno
	contexto *Contexto // contexto del planificador

	noff   int  // profundidad de pushOff
	intena bool // estado de las interrupciones antes del primer pushOff
	intrOn bool

	timerPendiente atomic.Bool
}

// ID devuelve el número de la CPU
func (c *CPU) ID() int { return c.id }

// pushOff es como intr_off pero apareado: hacen falta tantos popOff como
// pushOff para volver a habilitar las interrupciones
func (c *CPU) pushOff() {
	if c == nil {
		return
	}
	viejo := c.intrOn
	c.intrOn = false
	if c.noff == 0 {
		c.intena = viejo
	}
	c.noff++
}

func (c *CPU) popOff() {
	if c == nil {
		return
	}
	if c.intrOn {
		panicKernel("pop_off - interruptible")
	}
	if c.noff < 1 {
		panicKernel("pop_off")
	}
	c.noff--
	if c.noff == 0 && c.intena {
		c.intrOn = true
	}
}

// Contexto es lo que swtch guarda de quien cede la CPU. En vez de
// registros callee-saved cada contexto tiene su propia goroutine, que
// espera en el canal hasta que le vuelven a pasar el control.
type Contexto struct {
	canal   chan struct{}
	entrada func() // se ejecuta la primera vez que se cambia a este contexto

	iniciado bool
	cerrar   sync.Once
}

func nuevoContexto(entrada func()) *Contexto {
	return &Contexto{
		canal:   make(chan struct{}, 1),
		entrada: entrada,
	}
}

// contextoActual es el contexto de la goroutine que lo crea, que ya está corriendo
func contextoActual() *Contexto {
	return &Contexto{
		canal:    make(chan struct{}, 1),
		iniciado: true,
	}
}

// reanudar le pasa el control al contexto
func (ctx *Contexto) reanudar() {
	if !ctx.iniciado {
		ctx.iniciado = true
		go func() {
			ctx.entrada()
			// Los hilos terminan con exit o kthread_exit, nunca volviendo acá
			panicKernel("contexto terminado sin exit")
		}()
		return
	}
	ctx.canal <- struct{}{}
}

// esperar bloquea la goroutine hasta que le devuelvan el control. Si el
// contexto se descartó, la goroutine termina.
func (ctx *Contexto) esperar() {
	if _, ok := <-ctx.canal; !ok {
		runtime.Goexit()
	}
}

// descartar libera la goroutine del contexto, que ya no va a volver a correr
func (ctx *Contexto) descartar() {
	ctx.cerrar.Do(func() { close(ctx.canal) })
}

// swtch guarda el contexto actual en viejo y continúa en nuevo
func swtch(viejo, nuevo *Contexto) {
	nuevo.reanudar()
	viejo.esperar()
}
