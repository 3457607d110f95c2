package nucleo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
	"golang.org/x/sync/errgroup"
)

// Nucleo es el kernel: las tablas de procesos e hilos, las CPUs, el timer,
// el pool de semáforos binarios y la memoria física sobre la que corre todo.
type Nucleo struct {
	cfg       Config
	log       *slog.Logger
	fisica    *memoria.Fisica
	almacen   memoria.AlmacenSwap
	politica  memoria.Politica
	trampolin uint64 // marco del trampolín, compartido por todos los procesos

	cpus     []*CPU
	procs    []Proceso
	initProc *Proceso

	// Orden de los cerrojos: waitLock, p.lock (padre antes que hijo), h.lock
	waitLock Cerrojo

	pidLock      Cerrojo
	siguientePid int
	tidLock      Cerrojo
	siguienteTid int

	ticksLock Cerrojo
	ticks     uint64

	semLock Cerrojo
	bsems   []estadoBsem

	timbre    chan struct{}
	apagando  atomic.Bool
	arrancado atomic.Bool
}

// Nuevo arma un kernel con la configuración cfg sobre la memoria física f.
// Si f es nil se crea con MARCOS_FISICOS marcos y si almacen es nil el swap
// vive en memoria.
func Nuevo(cfg Config, f *memoria.Fisica, almacen memoria.AlmacenSwap, log *slog.Logger) (*Nucleo, error) {
	cfg.AplicarDefaults()
	if err := cfg.Validar(); err != nil {
		return nil, fmt.Errorf("configuración inválida: %w", err)
	}
	log = utils.LoggerOPorDefecto(log)

	politica, err := memoria.NuevaPolitica(cfg.AlgoritmoReemplazo)
	if err != nil {
		return nil, err
	}
	if f == nil {
		f = memoria.NuevaFisica(cfg.MarcosFisicos, log)
	}
	if almacen == nil {
		almacen = memoria.NuevoSwapEnMemoria()
	}

	n := &Nucleo{
		cfg:          cfg,
		log:          log,
		fisica:       f,
		almacen:      almacen,
		politica:     politica,
		siguientePid: 1,
		siguienteTid: 1,
		bsems:        make([]estadoBsem, cfg.SemaforosBinarios),
		timbre:       make(chan struct{}, cfg.CantidadCPUs),
	}
	n.waitLock.iniciar("wait_lock")
	n.pidLock.iniciar("nextpid")
	n.tidLock.iniciar("nexttid")
	n.ticksLock.iniciar("time")
	n.semLock.iniciar("bsem")

	n.trampolin, err = f.ReservarLimpio()
	if err != nil {
		return nil, fmt.Errorf("trampolín: %w", err)
	}

	for i := 0; i < cfg.CantidadCPUs; i++ {
		n.cpus = append(n.cpus, &CPU{id: i})
	}
	n.iniciarTablas()

	log.Debug("Kernel creado",
		"cpus", cfg.CantidadCPUs,
		"procesos", cfg.CantidadProcesos,
		"hilos_por_proceso", cfg.HilosPorProceso,
		"politica", politica.Nombre(),
		"marcos", f.Marcos())
	return n, nil
}

// Arrancar crea init con el programa dado y corre las CPUs y el timer hasta
// que se cancele ctx. Al volver, los hilos que quedaron se descartan.
func (n *Nucleo) Arrancar(ctx context.Context, init Programa) error {
	if !n.arrancado.CompareAndSwap(false, true) {
		return errors.New("nucleo: ya arrancado")
	}
	if err := n.userinit(init); err != nil {
		return err
	}
	n.log.Info("Kernel iniciado", "cpus", len(n.cpus), "politica", n.politica.Nombre())

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range n.cpus {
		c := c
		g.Go(func() error {
			return n.planificador(gctx, c)
		})
	}
	g.Go(func() error {
		return n.reloj(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		n.apagando.Store(true)
		return nil
	})

	err := g.Wait()
	n.descartarHilos()
	n.log.Info("Kernel detenido")
	return err
}

// descartarHilos termina las goroutines de los hilos que quedaron
// esperando en swtch. Se llama con todas las CPUs detenidas.
func (n *Nucleo) descartarHilos() {
	for i := range n.procs {
		p := &n.procs[i]
		for j := range p.hilos {
			h := &p.hilos[j]
			h.lock.Adquirir(nil)
			if h.contexto != nil {
				h.contexto.descartar()
			}
			h.lock.Liberar(nil)
		}
	}
}

// Kill le manda la señal sig al proceso pid desde fuera de cualquier proceso
func (n *Nucleo) Kill(pid, sig int) error {
	return n.kill(nil, pid, sig)
}

// Ticks devuelve las interrupciones de timer desde el arranque
func (n *Nucleo) Ticks() uint64 {
	n.ticksLock.Adquirir(nil)
	defer n.ticksLock.Liberar(nil)
	return n.ticks
}

// Config devuelve la configuración con la que corre el kernel
func (n *Nucleo) Config() Config { return n.cfg }

// panicKernel corta todo ante un invariante roto del kernel
func panicKernel(motivo string) {
	if utils.ErrorLog != nil {
		utils.ErrorLog.Error("panic", "motivo", motivo)
	}
	panic(motivo)
}
