package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/mattn/go-tty"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/nucleo"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Teclas de control de la consola
const (
	teclaProcdump = 'P' & 0x1f // ^P lista los procesos
	teclaVolcado  = 'D' & 0x1f // ^D vuelca la memoria de todos los procesos
	teclaSalir    = 'X' & 0x1f // ^X apaga el kernel
)

// Consola atiende el teclado de la terminal donde corre el kernel
type Consola struct {
	n        *nucleo.Nucleo
	t        *tty.TTY
	cancelar context.CancelFunc
	cerrar   sync.Once
}

func abrirConsola(n *nucleo.Nucleo, cancelar context.CancelFunc) (*Consola, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, fmt.Errorf("abriendo terminal: %w", err)
	}
	return &Consola{n: n, t: t, cancelar: cancelar}, nil
}

// Leer procesa teclas hasta que se cancele ctx o se cierre la terminal
func (c *Consola) Leer(ctx context.Context) error {
	teclas := make(chan rune)
	go func() {
		defer close(teclas)
		for {
			r, err := c.t.ReadRune()
			if err != nil {
				return
			}
			select {
			case teclas <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.t.Output(), "^P procesos, ^D volcado de memoria, ^X salir")
	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-teclas:
			if !ok {
				return nil
			}
			c.tecla(r)
		}
	}
}

func (c *Consola) tecla(r rune) {
	switch r {
	case teclaProcdump:
		fmt.Fprint(c.t.Output(), c.n.Procdump())
	case teclaVolcado:
		for _, p := range c.n.Procesos() {
			v, err := c.n.Volcar(p.Pid)
			if err != nil {
				utils.InfoLog.Warn("No se pudo volcar la memoria", "pid", p.Pid, "error", err)
				continue
			}
			fmt.Fprintf(c.t.Output(), "pid %d: %s (ram=%d swap=%d)\n", v.Pid, v.ArchivoDmp, v.EnRAM, v.EnSwap)
		}
	case teclaSalir:
		utils.InfoLog.Info("Apagado pedido desde la consola")
		c.cancelar()
	}
}

// Shutdown devuelve la terminal a su modo original
func (c *Consola) Shutdown() error {
	var err error
	c.cerrar.Do(func() {
		err = c.t.Close()
	})
	return err
}
