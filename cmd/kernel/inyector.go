package main

import (
	"context"

	"github.com/samber/do"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/nucleo"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// nuevoInyector registra los servicios del kernel. Cada uno se construye
// la primera vez que alguien lo pide.
func nuevoInyector(cfg nucleo.Config, cancelar context.CancelFunc) *do.Injector {
	i := do.New()

	do.ProvideValue(i, cfg)
	do.ProvideNamedValue(i, "cancelar", cancelar)

	do.Provide(i, func(i *do.Injector) (*memoria.Fisica, error) {
		cfg := do.MustInvoke[nucleo.Config](i)
		return memoria.NuevaFisica(cfg.MarcosFisicos, utils.InfoLog), nil
	})

	do.Provide(i, func(i *do.Injector) (memoria.AlmacenSwap, error) {
		cfg := do.MustInvoke[nucleo.Config](i)
		if cfg.SwapPath == "" {
			utils.InfoLog.Info("Swap en memoria")
			return memoria.NuevoSwapEnMemoria(), nil
		}
		utils.InfoLog.Info("Swap en disco", "ruta", cfg.SwapPath, "retardo_ms", cfg.RetardoSwap)
		return memoria.NuevoSwapEnDisco(cfg.SwapPath, cfg.RetardoSwap, cfg.CantidadCPUs, utils.InfoLog)
	})

	do.Provide(i, func(i *do.Injector) (*nucleo.Nucleo, error) {
		return nucleo.Nuevo(
			do.MustInvoke[nucleo.Config](i),
			do.MustInvoke[*memoria.Fisica](i),
			do.MustInvoke[memoria.AlmacenSwap](i),
			utils.InfoLog,
		)
	})

	do.Provide(i, func(i *do.Injector) (*ServidorConsola, error) {
		return nuevoServidorConsola(do.MustInvoke[nucleo.Config](i), do.MustInvoke[*nucleo.Nucleo](i)), nil
	})

	do.Provide(i, func(i *do.Injector) (*Consola, error) {
		return abrirConsola(
			do.MustInvoke[*nucleo.Nucleo](i),
			do.MustInvokeNamed[context.CancelFunc](i, "cancelar"),
		)
	})

	return i
}
