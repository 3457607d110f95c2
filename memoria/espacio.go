package memoria

import (
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Los procesos con pid menor o igual a este valor (init y el shell)
// nunca se paginan
const PidMaximoSinPaginado = 2

// ConfigEspacio reúne los parámetros de paginado de un espacio de direcciones
type ConfigEspacio struct {
	MaxPaginasFisicas int
	MaxPaginasTotales int
	Politica          Politica
	Almacen           AlmacenSwap
}

// Espacio es el espacio de direcciones de usuario de un proceso: su tabla
// de páginas, su tamaño y el registro de residencia de sus páginas.
// Ningún método toma locks; quien llama debe tener el lock del proceso dueño.
type Espacio struct {
	Raiz     TablaPaginas
	Tam      uint64
	Registro Registro
	Metricas MetricasProceso

	fisica   *Fisica
	cfg      ConfigEspacio
	swap     ArchivoSwap
	pid      int
	paginado bool
	log      *slog.Logger
}

// NuevoEspacio crea un espacio vacío, sin tabla. Se prepara con Preparar.
func NuevoEspacio(f *Fisica, cfg ConfigEspacio, log *slog.Logger) *Espacio {
	if cfg.Politica == nil {
		cfg.Politica = Ninguna{}
	}
	if cfg.Almacen == nil {
		cfg.Almacen = NuevoSwapEnMemoria()
	}
	if cfg.MaxPaginasTotales < cfg.MaxPaginasFisicas {
		cfg.MaxPaginasTotales = cfg.MaxPaginasFisicas
	}
	return &Espacio{
		Registro: nuevoRegistro(cfg.MaxPaginasTotales),
		fisica:   f,
		cfg:      cfg,
		log:      utils.LoggerOPorDefecto(log),
	}
}

// Preparar crea la tabla raíz del espacio para el proceso pid
func (e *Espacio) Preparar(pid int) error {
	raiz, err := e.fisica.CrearTabla()
	if err != nil {
		return err
	}
	e.Raiz = raiz
	e.Tam = 0
	e.pid = pid
	e.paginado = UsaPaginado(e.cfg.Politica) && pid > PidMaximoSinPaginado
	e.Registro.Reiniciar()
	e.Metricas.Reiniciar()
	e.log.Debug("Espacio de direcciones creado", "pid", pid, "paginado", e.paginado, "politica", e.cfg.Politica.Nombre())
	return nil
}

// Pid devuelve el pid dueño del espacio
func (e *Espacio) Pid() int { return e.pid }

// Paginado indica si el espacio lleva registro de residencia y usa swap
func (e *Espacio) Paginado() bool { return e.paginado }

// Fisica devuelve la RAM sobre la que vive el espacio
func (e *Espacio) Fisica() *Fisica { return e.fisica }

// Politica devuelve la política de reemplazo configurada
func (e *Espacio) Politica() Politica { return e.cfg.Politica }

// Liberar devuelve toda la memoria de usuario, las tablas y el swap.
// Las páginas fuera de [0, Tam) (trampolín, marco de trap) deben haberse
// desmapeado antes.
func (e *Espacio) Liberar() {
	if e.Raiz != 0 {
		if e.Tam > 0 {
			e.Desmapear(0, int(RedondearArriba(e.Tam)/TamPagina), true)
		}
		e.fisica.LiberarTablas(e.Raiz)
	}
	if e.swap != nil {
		if err := e.swap.Eliminar(); err != nil {
			e.log.Warn("No se pudo eliminar el swap", "pid", e.pid, "error", err)
		}
		e.swap = nil
	}
	e.Raiz = 0
	e.Tam = 0
	e.pid = 0
	e.paginado = false
	e.Registro.Reiniciar()
}

// Desmapear quita n páginas desde va y las saca del registro de residencia
func (e *Espacio) Desmapear(va uint64, n int, liberar bool) {
	e.fisica.Desmapear(e.Raiz, va, n, liberar, func(a uint64, pte PTE) {
		if !e.paginado {
			return
		}
		if i := e.Registro.Buscar(a, pte.Valida()); i >= 0 {
			e.Registro.quitar(i)
		}
	})
}

// Crecer agranda la memoria de usuario hasta nuevoTam y devuelve el tamaño
// resultante. Si el proceso paginado supera su máximo de páginas devuelve
// ErrPresupuestoExcedido sin tocar nada; si falta memoria física deshace lo
// agregado y devuelve ErrSinMemoria.
func (e *Espacio) Crecer(nuevoTam uint64) (uint64, error) {
	viejo := e.Tam
	if nuevoTam < viejo {
		return viejo, nil
	}
	if nuevoTam > MarcoTrap {
		return viejo, ErrDireccionInvalida
	}

	inicio := RedondearArriba(viejo)
	if e.paginado {
		nuevas := int((RedondearArriba(nuevoTam) - inicio) / TamPagina)
		if e.Registro.Total()+nuevas > e.cfg.MaxPaginasTotales {
			e.log.Warn("Presupuesto de páginas excedido",
				"pid", e.pid,
				"paginas_actuales", e.Registro.Total(),
				"paginas_pedidas", nuevas,
				"maximo", e.cfg.MaxPaginasTotales)
			return viejo, ErrPresupuestoExcedido
		}
	}

	for a := inicio; a < nuevoTam; a += TamPagina {
		if e.paginado && e.Registro.EnRAM >= e.cfg.MaxPaginasFisicas {
			if err := e.ReemplazarPagina(0, HaciaDisco); err != nil {
				e.dealloc(a, viejo)
				return viejo, err
			}
		}

		mem, err := e.fisica.ReservarLimpio()
		if err != nil {
			e.dealloc(a, viejo)
			return viejo, err
		}
		if err := e.fisica.Mapear(e.Raiz, a, TamPagina, mem, PteW|PteX|PteR|PteU); err != nil {
			e.fisica.Liberar(mem)
			e.dealloc(a, viejo)
			return viejo, err
		}

		if e.paginado {
			i := e.Registro.Libre()
			if i < 0 {
				panic(fmt.Sprintf("memoria: crecer: registro lleno (pid %d)", e.pid))
			}
			e.Registro.agregarRAM(i, a, e.cfg.Politica)
		}
	}

	e.Tam = nuevoTam
	return nuevoTam, nil
}

// Decrecer achica la memoria de usuario a nuevoTam y devuelve el tamaño resultante
func (e *Espacio) Decrecer(nuevoTam uint64) uint64 {
	e.Tam = e.dealloc(e.Tam, nuevoTam)
	return e.Tam
}

func (e *Espacio) dealloc(viejo, nuevo uint64) uint64 {
	if nuevo >= viejo {
		return viejo
	}
	if RedondearArriba(nuevo) < RedondearArriba(viejo) {
		n := int((RedondearArriba(viejo) - RedondearArriba(nuevo)) / TamPagina)
		e.Desmapear(RedondearArriba(nuevo), n, true)
	}
	return nuevo
}

// Clonar copia este espacio en hijo, que ya tiene que estar preparado.
// Las páginas en swap del padre se copian al swap del hijo.
func (e *Espacio) Clonar(hijo *Espacio) error {
	if err := e.fisica.Clonar(e.Raiz, hijo.Raiz, e.Tam); err != nil {
		return err
	}
	hijo.Tam = e.Tam

	switch {
	case e.paginado && hijo.paginado:
		hijo.Registro.CopiarDe(&e.Registro)
		return e.copiarSwap(hijo)
	case !e.paginado && hijo.paginado:
		return hijo.registrarResidentes()
	case e.paginado && !hijo.paginado:
		panic("memoria: clonar: hijo sin paginado de un padre paginado")
	}
	return nil
}

func (e *Espacio) copiarSwap(hijo *Espacio) error {
	if e.Registro.EnDisco == 0 {
		return nil
	}
	origen, err := e.archivo()
	if err != nil {
		return err
	}
	destino, err := hijo.archivo()
	if err != nil {
		return err
	}

	buf := make([]byte, TamPagina)
	for _, ent := range e.Registro.Entradas {
		if !ent.Usada || ent.EnRAM {
			continue
		}
		if _, err := origen.ReadAt(buf, ent.Offset); err != nil {
			return err
		}
		if _, err := destino.WriteAt(buf, ent.Offset); err != nil {
			return err
		}
	}
	e.log.Debug("Swap copiado al hijo", "pid", e.pid, "hijo", hijo.pid, "paginas", e.Registro.EnDisco)
	return nil
}

// registrarResidentes arma el registro de un espacio recién clonado de un
// padre sin paginado, desalojando lo que no entre en RAM
func (e *Espacio) registrarResidentes() error {
	for a := uint64(0); a < e.Tam; a += TamPagina {
		pte, ok := e.fisica.BuscarPTE(e.Raiz, a)
		if !ok || !pte.Valida() {
			continue
		}
		if e.Registro.Total() >= e.cfg.MaxPaginasTotales {
			return ErrPresupuestoExcedido
		}
		if e.Registro.EnRAM >= e.cfg.MaxPaginasFisicas {
			if err := e.ReemplazarPagina(0, HaciaDisco); err != nil {
				return err
			}
		}
		e.Registro.agregarRAM(e.Registro.Libre(), a, e.cfg.Politica)
	}
	return nil
}

// Envejecer aplica un tick de la política de reemplazo
func (e *Espacio) Envejecer() {
	if e.paginado {
		e.cfg.Politica.Envejecer(e)
	}
}

// archivo devuelve el swap del proceso, creándolo en el primer uso
func (e *Espacio) archivo() (ArchivoSwap, error) {
	if e.swap != nil {
		return e.swap, nil
	}
	a, err := e.cfg.Almacen.Abrir(e.pid)
	if err != nil {
		return nil, err
	}
	e.swap = a
	return a, nil
}
