package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/nucleo"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Uso: %s <archivo_configuracion>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ejemplo: %s configs/kernel.json\n", os.Args[0])
		os.Exit(1)
	}

	if err := correr(os.Args[1]); err != nil {
		if utils.ErrorLog != nil {
			utils.ErrorLog.Error("Kernel finalizado con error", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func correr(configPath string) error {
	cfg, err := utils.CargarConfiguracion[nucleo.Config](configPath)
	if err != nil {
		return err
	}
	cfg.AplicarDefaults()
	utils.InicializarLogger(cfg.LogLevel, "kernel")
	utils.InfoLog.Info("Kernel iniciando", "config", configPath)

	ctx, cancelar := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancelar()

	inyector := nuevoInyector(*cfg, cancelar)
	defer func() {
		if err := inyector.Shutdown(); err != nil {
			utils.ErrorLog.Error("Error liberando servicios", "error", err)
		}
	}()

	n, err := do.Invoke[*nucleo.Nucleo](inyector)
	if err != nil {
		return fmt.Errorf("creando kernel: %w", err)
	}
	servidor, err := do.Invoke[*ServidorConsola](inyector)
	if err != nil {
		return fmt.Errorf("creando consola HTTP: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.Arrancar(gctx, programaInit(*cfg))
	})
	g.Go(func() error {
		return servidor.Atender(gctx)
	})
	g.Go(func() error {
		consola, err := do.Invoke[*Consola](inyector)
		if err != nil {
			utils.InfoLog.Warn("Consola de teclado no disponible", "error", err)
			return nil
		}
		return consola.Leer(gctx)
	})

	utils.InfoLog.Info("Kernel listo", "ip", cfg.IPKernel, "puerto", cfg.PuertoKernel)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	utils.InfoLog.Info("Kernel finalizando", "ticks", n.Ticks())
	return nil
}
