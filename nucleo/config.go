package nucleo

import (
	"fmt"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
)

// Config es la configuración del kernel tal como se lee del JSON
type Config struct {
	LogLevel           string `json:"LOG_LEVEL"`
	CantidadCPUs       int    `json:"CANTIDAD_CPUS"`
	CantidadProcesos   int    `json:"CANTIDAD_PROCESOS"`
	HilosPorProceso    int    `json:"HILOS_POR_PROCESO"`
	MarcosFisicos      int    `json:"MARCOS_FISICOS"`
	MaxPaginasFisicas  int    `json:"MAX_PAGINAS_FISICAS"`
	MaxPaginasTotales  int    `json:"MAX_PAGINAS_TOTALES"`
	AlgoritmoReemplazo string `json:"ALGORITMO_REEMPLAZO"`
	SemaforosBinarios  int    `json:"SEMAFOROS_BINARIOS"`
	IntervaloTimerMs   int    `json:"INTERVALO_TIMER_MS"`
	RetardoSwap        int    `json:"RETARDO_SWAP"`
	SwapPath           string `json:"SWAP_PATH"`
	DumpPath           string `json:"DUMP_PATH"`
	IPKernel           string `json:"IP_KERNEL"`
	PuertoKernel       int    `json:"PUERTO_KERNEL"`
	TamPilaHilo        int    `json:"TAM_PILA_HILO"`
}

// AplicarDefaults completa los campos sin valor
func (c *Config) AplicarDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.CantidadCPUs <= 0 {
		c.CantidadCPUs = NCPU
	}
	if c.CantidadProcesos <= 0 {
		c.CantidadProcesos = NPROC
	}
	if c.HilosPorProceso <= 0 {
		c.HilosPorProceso = NTHREAD
	}
	if c.MarcosFisicos <= 0 {
		c.MarcosFisicos = NMARCOS
	}
	if c.MaxPaginasFisicas <= 0 {
		c.MaxPaginasFisicas = MAX_PSYC_PAGES
	}
	if c.MaxPaginasTotales <= 0 {
		c.MaxPaginasTotales = MAX_TOTAL_PAGES
	}
	if c.AlgoritmoReemplazo == "" {
		c.AlgoritmoReemplazo = "SCFIFO"
	}
	if c.SemaforosBinarios <= 0 {
		c.SemaforosBinarios = MAX_BSEM
	}
	if c.IntervaloTimerMs <= 0 {
		c.IntervaloTimerMs = 10
	}
	if c.DumpPath == "" {
		c.DumpPath = "dump_files"
	}
	if c.IPKernel == "" {
		c.IPKernel = "127.0.0.1"
	}
	if c.PuertoKernel <= 0 {
		c.PuertoKernel = 8001
	}
	if c.TamPilaHilo <= 0 {
		c.TamPilaHilo = MAX_STACK_SIZE
	}
}

// Validar controla que la configuración sea coherente
func (c *Config) Validar() error {
	if c.MaxPaginasTotales < c.MaxPaginasFisicas {
		return fmt.Errorf("MAX_PAGINAS_TOTALES (%d) menor que MAX_PAGINAS_FISICAS (%d)", c.MaxPaginasTotales, c.MaxPaginasFisicas)
	}
	if c.MaxPaginasFisicas < paginasIniciales {
		return fmt.Errorf("MAX_PAGINAS_FISICAS debe ser al menos %d", paginasIniciales)
	}
	if c.HilosPorProceso*tamTrapframe > memoria.TamPagina {
		return fmt.Errorf("HILOS_POR_PROCESO (%d) no entra en una página de marcos de trap", c.HilosPorProceso)
	}
	if c.CantidadProcesos < 2 {
		return fmt.Errorf("CANTIDAD_PROCESOS debe ser al menos 2")
	}
	if _, err := memoria.NuevaPolitica(c.AlgoritmoReemplazo); err != nil {
		return err
	}
	return nil
}

// Intervalo devuelve el período del timer
func (c *Config) Intervalo() time.Duration {
	return time.Duration(c.IntervaloTimerMs) * time.Millisecond
}
