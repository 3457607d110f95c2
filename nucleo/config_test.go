package nucleo

import (
	"testing"
	"time"
)

func TestAplicarDefaults(t *testing.T) {
	var cfg Config
	cfg.AplicarDefaults()

	if cfg.CantidadCPUs != NCPU || cfg.CantidadProcesos != NPROC || cfg.HilosPorProceso != NTHREAD {
		t.Errorf("tablas por defecto: %+v", cfg)
	}
	if cfg.MaxPaginasFisicas != MAX_PSYC_PAGES || cfg.MaxPaginasTotales != MAX_TOTAL_PAGES {
		t.Errorf("páginas por defecto: %d/%d", cfg.MaxPaginasFisicas, cfg.MaxPaginasTotales)
	}
	if cfg.AlgoritmoReemplazo != "SCFIFO" || cfg.TamPilaHilo != MAX_STACK_SIZE {
		t.Errorf("algoritmo=%q pila=%d", cfg.AlgoritmoReemplazo, cfg.TamPilaHilo)
	}
	if cfg.Intervalo() != 10*time.Millisecond {
		t.Errorf("Intervalo = %v", cfg.Intervalo())
	}
	if err := cfg.Validar(); err != nil {
		t.Errorf("la configuración por defecto no valida: %v", err)
	}

	cfg = Config{CantidadCPUs: 1, AlgoritmoReemplazo: "NFUA"}
	cfg.AplicarDefaults()
	if cfg.CantidadCPUs != 1 || cfg.AlgoritmoReemplazo != "NFUA" {
		t.Errorf("AplicarDefaults pisó valores: %+v", cfg)
	}
}

func TestValidar(t *testing.T) {
	casos := []struct {
		nombre    string
		modificar func(*Config)
		valida    bool
	}{
		{"por defecto", func(*Config) {}, true},
		{"sin paginado", func(c *Config) { c.AlgoritmoReemplazo = "NINGUNO" }, true},
		{"lapa en minúsculas", func(c *Config) { c.AlgoritmoReemplazo = "lapa" }, true},
		{"algoritmo desconocido", func(c *Config) { c.AlgoritmoReemplazo = "LRU" }, false},
		{"totales menor que físicas", func(c *Config) { c.MaxPaginasTotales = c.MaxPaginasFisicas - 1 }, false},
		{"físicas menos que las de init", func(c *Config) { c.MaxPaginasFisicas = 1 }, false},
		{"trapframes que no entran", func(c *Config) { c.HilosPorProceso = 15 }, false},
		{"un solo proceso", func(c *Config) { c.CantidadProcesos = 1 }, false},
	}
	for _, tc := range casos {
		tc := tc
		t.Run(tc.nombre, func(t *testing.T) {
			var cfg Config
			cfg.AplicarDefaults()
			tc.modificar(&cfg)
			err := cfg.Validar()
			if tc.valida && err != nil {
				t.Errorf("Validar: %v", err)
			}
			if !tc.valida && err == nil {
				t.Error("Validar aceptó una configuración inválida")
			}
		})
	}
}
