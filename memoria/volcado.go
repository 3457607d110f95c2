package memoria

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Volcado es el resultado de volcar la memoria de un proceso
type Volcado struct {
	Pid        int    `json:"pid"`
	ArchivoDmp string `json:"archivo_dmp"`
	ArchivoPng string `json:"archivo_png"`
	Paginas    int    `json:"paginas"`
	EnRAM      int    `json:"en_ram"`
	EnSwap     int    `json:"en_swap"`
}

const (
	ladoCelda     = 48
	celdasPorFila = 8
	margen        = 16
	altoTitulo    = 24
)

// Volcar escribe en directorio el contenido completo de la memoria de
// usuario del proceso (<pid>-<fecha>.dmp) y un mapa de residencia de sus
// páginas (<pid>-<fecha>.png). No cambia la residencia de ninguna página.
func (e *Espacio) Volcar(directorio string) (*Volcado, error) {
	e.log.Info(fmt.Sprintf("## PID: %d Memory Dump solicitado", e.pid))

	if err := os.MkdirAll(directorio, 0755); err != nil {
		e.log.Error("Error creando directorio dump", "error", err)
		return nil, fmt.Errorf("error al crear directorio para dumps: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	base := filepath.Join(directorio, fmt.Sprintf("%d-%s", e.pid, timestamp))
	v := &Volcado{
		Pid:        e.pid,
		ArchivoDmp: base + ".dmp",
		ArchivoPng: base + ".png",
	}

	estado := e.Estado()
	contenido := make([]byte, len(estado)*TamPagina)
	for i, ep := range estado {
		pagina := contenido[i*TamPagina : (i+1)*TamPagina]
		switch {
		case ep.EnRAM:
			v.EnRAM++
		case ep.EnSwap:
			v.EnSwap++
		default:
			continue
		}
		if err := e.LeerPagina(ep.VA, pagina); err != nil {
			return nil, fmt.Errorf("error leyendo página 0x%x: %w", ep.VA, err)
		}
	}
	v.Paginas = len(estado)

	if err := os.WriteFile(v.ArchivoDmp, contenido, 0644); err != nil {
		e.log.Error("Error escribiendo dump", "archivo", v.ArchivoDmp, "error", err)
		return nil, fmt.Errorf("error al escribir en archivo de dump: %w", err)
	}

	if err := dibujarResidencia(e.pid, estado, v.ArchivoPng); err != nil {
		e.log.Error("Error dibujando mapa de residencia", "archivo", v.ArchivoPng, "error", err)
		return nil, err
	}

	e.log.Info("Memory dump completado", "pid", e.pid, "archivo", v.ArchivoDmp, "paginas", v.Paginas, "en_ram", v.EnRAM, "en_swap", v.EnSwap)
	return v, nil
}

// dibujarResidencia arma una grilla con una celda por página: verde en RAM,
// naranja en swap y gris sin mapear. Las páginas accedidas llevan borde.
func dibujarResidencia(pid int, estado []EstadoPagina, ruta string) error {
	filas := (len(estado) + celdasPorFila - 1) / celdasPorFila
	if filas == 0 {
		filas = 1
	}
	ancho := 2*margen + celdasPorFila*ladoCelda
	alto := 2*margen + altoTitulo + filas*ladoCelda

	dc := gg.NewContext(ancho, alto)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("PID %d - %d paginas", pid, len(estado)), margen, margen+13)

	for i, ep := range estado {
		x := float64(margen + (i%celdasPorFila)*ladoCelda)
		y := float64(margen + altoTitulo + (i/celdasPorFila)*ladoCelda)

		switch {
		case ep.EnRAM:
			dc.SetRGB(0.30, 0.70, 0.35)
		case ep.EnSwap:
			dc.SetRGB(0.95, 0.55, 0.15)
		default:
			dc.SetRGB(0.80, 0.80, 0.80)
		}
		dc.DrawRectangle(x+2, y+2, ladoCelda-4, ladoCelda-4)
		dc.Fill()

		if ep.Accedida {
			dc.SetRGB(0, 0, 0)
			dc.SetLineWidth(2)
			dc.DrawRectangle(x+2, y+2, ladoCelda-4, ladoCelda-4)
			dc.Stroke()
		}

		dc.SetRGB(0, 0, 0)
		dc.DrawString(fmt.Sprintf("%d", ep.VA/TamPagina), x+6, y+18)
		if ep.Escrita {
			dc.DrawString("D", x+6, y+34)
		}
	}

	if err := dc.SavePNG(ruta); err != nil {
		return fmt.Errorf("error al guardar %s: %w", ruta, err)
	}
	return nil
}
