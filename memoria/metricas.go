package memoria

import "sync/atomic"

// MetricasProceso almacena estadísticas sobre el uso de memoria de un proceso
type MetricasProceso struct {
	AccesosTablasPaginas atomic.Int64
	FallosPagina         atomic.Int64
	BajadasSwap          atomic.Int64
	SubidasMemoria       atomic.Int64
	LecturasMemoria      atomic.Int64
	EscriturasMemoria    atomic.Int64
}

// ResumenMetricas es una copia de las métricas para mostrar o serializar
type ResumenMetricas struct {
	AccesosTablasPaginas int64 `json:"accesos_tablas_paginas"`
	FallosPagina         int64 `json:"fallos_pagina"`
	BajadasSwap          int64 `json:"bajadas_swap"`
	SubidasMemoria       int64 `json:"subidas_memoria"`
	LecturasMemoria      int64 `json:"lecturas_memoria"`
	EscriturasMemoria    int64 `json:"escrituras_memoria"`
}

// Resumen toma una foto de los contadores
func (m *MetricasProceso) Resumen() ResumenMetricas {
	return ResumenMetricas{
		AccesosTablasPaginas: m.AccesosTablasPaginas.Load(),
		FallosPagina:         m.FallosPagina.Load(),
		BajadasSwap:          m.BajadasSwap.Load(),
		SubidasMemoria:       m.SubidasMemoria.Load(),
		LecturasMemoria:      m.LecturasMemoria.Load(),
		EscriturasMemoria:    m.EscriturasMemoria.Load(),
	}
}

// Reiniciar pone todos los contadores en cero
func (m *MetricasProceso) Reiniciar() {
	m.AccesosTablasPaginas.Store(0)
	m.FallosPagina.Store(0)
	m.BajadasSwap.Store(0)
	m.SubidasMemoria.Store(0)
	m.LecturasMemoria.Store(0)
	m.EscriturasMemoria.Store(0)
}

func (e *Espacio) metricaAcceso(escritura bool) {
	e.Metricas.AccesosTablasPaginas.Add(1)
	if escritura {
		e.Metricas.EscriturasMemoria.Add(1)
	} else {
		e.Metricas.LecturasMemoria.Add(1)
	}
}

func (e *Espacio) metricaBajada() {
	total := e.Metricas.BajadasSwap.Add(1)
	e.log.Debug("Bajada a SWAP", "pid", e.pid, "total_bajadas", total)
}

func (e *Espacio) metricaSubida() {
	total := e.Metricas.SubidasMemoria.Add(1)
	e.log.Debug("Subida a memoria", "pid", e.pid, "total_subidas", total)
}

func (e *Espacio) metricaFallo() {
	total := e.Metricas.FallosPagina.Add(1)
	e.log.Debug("Fallo de página", "pid", e.pid, "total_fallos", total)
}
