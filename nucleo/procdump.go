package nucleo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
)

// ErrProcesoInexistente indica que no hay un proceso vivo con ese pid
var ErrProcesoInexistente = errors.New("nucleo: no existe el proceso")

// ErrInitProtegido indica que se intentó mandarle una señal a init
var ErrInitProtegido = errors.New("nucleo: init no recibe señales")

// InfoHilo describe un hilo para la consola
type InfoHilo struct {
	Tid    int    `json:"tid"`
	Estado string `json:"estado"`
}

// InfoProceso describe un proceso para la consola
type InfoProceso struct {
	Pid       int                     `json:"pid"`
	Nombre    string                  `json:"nombre"`
	Estado    string                  `json:"estado"`
	Tam       uint64                  `json:"tam"`
	EnRAM     int                     `json:"en_ram"`
	EnSwap    int                     `json:"en_swap"`
	Pendiente uint32                  `json:"pendientes"`
	Mascara   uint32                  `json:"mascara"`
	Detenido  bool                    `json:"detenido"`
	Hilos     []InfoHilo              `json:"hilos"`
	Metricas  memoria.ResumenMetricas `json:"metricas"`
}

// Procesos lista los procesos que no están libres
func (n *Nucleo) Procesos() []InfoProceso {
	var lista []InfoProceso
	for i := range n.procs {
		p := &n.procs[i]
		p.lock.Adquirir(nil)
		if p.estado == ProcLibre {
			p.lock.Liberar(nil)
			continue
		}
		info := InfoProceso{
			Pid:       p.pid,
			Nombre:    p.nombre,
			Estado:    p.estado.String(),
			Tam:       p.esp.Tam,
			EnRAM:     p.esp.Registro.EnRAM,
			EnSwap:    p.esp.Registro.EnDisco,
			Pendiente: p.pendientes,
			Mascara:   p.mascara,
			Detenido:  p.congelado,
			Metricas:  p.esp.Metricas.Resumen(),
		}
		for j := range p.hilos {
			t := &p.hilos[j]
			t.lock.Adquirir(nil)
			if t.estado != HiloLibre {
				info.Hilos = append(info.Hilos, InfoHilo{Tid: t.tid, Estado: t.estado.String()})
			}
			t.lock.Liberar(nil)
		}
		p.lock.Liberar(nil)
		lista = append(lista, info)
	}
	return lista
}

// Procdump arma el listado de procesos en el formato de la consola
func (n *Nucleo) Procdump() string {
	var b strings.Builder
	b.WriteString("\n")
	for _, p := range n.Procesos() {
		fmt.Fprintf(&b, "%d %s %s", p.Pid, p.Estado, p.Nombre)
		if p.Detenido {
			b.WriteString(" (detenido)")
		}
		fmt.Fprintf(&b, " ram=%d swap=%d", p.EnRAM, p.EnSwap)
		for _, h := range p.Hilos {
			fmt.Fprintf(&b, " [%d %s]", h.Tid, h.Estado)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Volcar hace el volcado de memoria del proceso pid en DUMP_PATH
func (n *Nucleo) Volcar(pid int) (*memoria.Volcado, error) {
	for i := range n.procs {
		p := &n.procs[i]
		p.lock.Adquirir(nil)
		if p.pid == pid && p.estado == ProcUsado {
			v, err := p.esp.Volcar(n.cfg.DumpPath)
			p.lock.Liberar(nil)
			return v, err
		}
		p.lock.Liberar(nil)
	}
	return nil, fmt.Errorf("%w: %d", ErrProcesoInexistente, pid)
}

// registrarMetricas deja en el log las métricas de memoria del proceso que termina
func (n *Nucleo) registrarMetricas(p *Proceso) {
	m := p.esp.Metricas.Resumen()
	n.log.Info(fmt.Sprintf("## PID: %d - Métricas: ATP;%d;Fallos;%d;SWAP;%d;MemPrin;%d;LecMem;%d;EscMem;%d",
		p.pid, m.AccesosTablasPaginas, m.FallosPagina, m.BajadasSwap, m.SubidasMemoria, m.LecturasMemoria, m.EscriturasMemoria))
}
