package memoria

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// ArchivoSwap es el área de swap de un proceso
type ArchivoSwap interface {
	io.ReaderAt
	io.WriterAt
	// Eliminar cierra el archivo y borra su contenido
	Eliminar() error
}

// AlmacenSwap crea los archivos de swap de los procesos
type AlmacenSwap interface {
	Abrir(pid int) (ArchivoSwap, error)
}

// ===================== Swap en disco =====================

// SwapEnDisco guarda el swap de cada proceso en <Directorio>/<pid>.swap
type SwapEnDisco struct {
	Directorio string
	RetardoMs  int

	sem *utils.Semaforo // limita las operaciones de disco simultáneas
	log *slog.Logger
}

// NuevoSwapEnDisco crea el almacén y su directorio
func NuevoSwapEnDisco(directorio string, retardoMs int, concurrencia int, log *slog.Logger) (*SwapEnDisco, error) {
	if err := os.MkdirAll(directorio, 0755); err != nil {
		return nil, fmt.Errorf("error al crear directorio de swap %s: %w", directorio, err)
	}
	return &SwapEnDisco{
		Directorio: directorio,
		RetardoMs:  retardoMs,
		sem:        utils.NewSemaforo(concurrencia),
		log:        utils.LoggerOPorDefecto(log),
	}, nil
}

// Abrir crea (o trunca) el archivo de swap del proceso
func (s *SwapEnDisco) Abrir(pid int) (ArchivoSwap, error) {
	ruta := filepath.Join(s.Directorio, fmt.Sprintf("%d.swap", pid))
	f, err := os.OpenFile(ruta, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		s.log.Error("Error abriendo archivo SWAP", "archivo", ruta, "error", err)
		return nil, fmt.Errorf("error al abrir archivo SWAP: %w", err)
	}
	s.log.Debug("Archivo SWAP creado", "pid", pid, "archivo", ruta)
	return &archivoDisco{almacen: s, pid: pid, ruta: ruta, f: f}, nil
}

type archivoDisco struct {
	almacen *SwapEnDisco
	pid     int
	ruta    string
	f       *os.File
}

func (a *archivoDisco) ReadAt(p []byte, off int64) (int, error) {
	a.almacen.sem.Wait()
	defer a.almacen.sem.Signal()

	utils.AplicarRetardo("swap", a.almacen.RetardoMs)
	n, err := a.f.ReadAt(p, off)
	if err != nil {
		a.almacen.log.Error("Error leyendo desde SWAP", "pid", a.pid, "offset", off, "error", err)
		return n, fmt.Errorf("error al leer de SWAP: %w", err)
	}
	return n, nil
}

func (a *archivoDisco) WriteAt(p []byte, off int64) (int, error) {
	a.almacen.sem.Wait()
	defer a.almacen.sem.Signal()

	utils.AplicarRetardo("swap", a.almacen.RetardoMs)
	n, err := a.f.WriteAt(p, off)
	if err != nil {
		a.almacen.log.Error("Error escribiendo en SWAP", "pid", a.pid, "offset", off, "error", err)
		return n, fmt.Errorf("error al escribir en SWAP: %w", err)
	}
	return n, nil
}

func (a *archivoDisco) Eliminar() error {
	errCerrar := a.f.Close()
	if err := os.Remove(a.ruta); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error al borrar archivo SWAP %s: %w", a.ruta, err)
	}
	a.almacen.log.Debug("Archivo SWAP eliminado", "pid", a.pid, "archivo", a.ruta)
	return errCerrar
}

// ===================== Swap en memoria =====================

// SwapEnMemoria guarda el swap en buffers del proceso Go. Se usa en tests
// y cuando no hay SWAP_PATH configurado.
type SwapEnMemoria struct {
	mu       sync.Mutex
	archivos map[int]*archivoMemoria
}

// NuevoSwapEnMemoria crea un almacén vacío
func NuevoSwapEnMemoria() *SwapEnMemoria {
	return &SwapEnMemoria{archivos: make(map[int]*archivoMemoria)}
}

func (s *SwapEnMemoria) Abrir(pid int) (ArchivoSwap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &archivoMemoria{almacen: s, pid: pid}
	s.archivos[pid] = a
	return a, nil
}

type archivoMemoria struct {
	almacen *SwapEnMemoria
	pid     int

	mu    sync.Mutex
	datos []byte
}

func (a *archivoMemoria) ReadAt(p []byte, off int64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if off < 0 || off >= int64(len(a.datos)) {
		return 0, io.EOF
	}
	n := copy(p, a.datos[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (a *archivoMemoria) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("offset negativo %d", off)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if fin := off + int64(len(p)); fin > int64(len(a.datos)) {
		crecido := make([]byte, fin)
		copy(crecido, a.datos)
		a.datos = crecido
	}
	return copy(a.datos[off:], p), nil
}

func (a *archivoMemoria) Eliminar() error {
	a.almacen.mu.Lock()
	defer a.almacen.mu.Unlock()
	if a.almacen.archivos[a.pid] == a {
		delete(a.almacen.archivos, a.pid)
	}
	return nil
}
