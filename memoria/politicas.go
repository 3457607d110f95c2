package memoria

import (
	"fmt"
	"math/bits"
	"strings"
)

// Politica decide qué página residente se desaloja cuando un proceso
// llega a su máximo de páginas en RAM
type Politica interface {
	Nombre() string
	// AlIngresar inicializa los datos de la política de una página que entra a RAM
	AlIngresar(e *EntradaPagina, r *Registro)
	// Envejecer se llama en cada tick de reloj del proceso
	Envejecer(esp *Espacio)
	// ElegirVictima devuelve el índice del registro de la página a desalojar, o -1
	ElegirVictima(esp *Espacio) int
}

// NuevaPolitica crea la política por nombre: NFUA, LAPA, SCFIFO o NINGUNO
func NuevaPolitica(nombre string) (Politica, error) {
	switch strings.ToUpper(nombre) {
	case "NFUA":
		return NFUA{}, nil
	case "LAPA":
		return LAPA{}, nil
	case "SCFIFO":
		return SCFIFO{}, nil
	case "NINGUNO", "NONE", "":
		return Ninguna{}, nil
	default:
		return nil, fmt.Errorf("algoritmo de reemplazo desconocido: %s", nombre)
	}
}

// UsaPaginado indica si la política lleva registro de residencia
func UsaPaginado(p Politica) bool {
	_, ninguna := p.(Ninguna)
	return !ninguna
}

// envejecer desplaza el contador de cada página residente y le suma
// el bit A de su PTE en el bit más alto. El bit A se limpia.
func envejecer(esp *Espacio) {
	r := &esp.Registro
	for i := range r.Entradas {
		e := &r.Entradas[i]
		if !e.Usada || !e.EnRAM {
			continue
		}
		dir, ok := esp.fisica.Recorrer(esp.Raiz, e.VA, false)
		if !ok {
			continue
		}
		pte := esp.fisica.LeerPTE(dir)
		e.Contador >>= 1
		if pte&PteA != 0 {
			e.Contador |= 1 << 31
			esp.fisica.EscribirPTE(dir, pte&^PteA)
		}
	}
}

// NFUA desaloja la página con menor contador de envejecimiento
type NFUA struct{}

func (NFUA) Nombre() string { return "NFUA" }
func (NFUA) AlIngresar(e *EntradaPagina, _ *Registro) { e.Contador = 0 }
func (NFUA) Envejecer(esp *Espacio) { envejecer(esp) }

func (NFUA) ElegirVictima(esp *Espacio) int {
	victima := -1
	var menor uint32
	for i, e := range esp.Registro.Entradas {
		if !e.Usada || !e.EnRAM {
			continue
		}
		if victima == -1 || e.Contador < menor {
			victima = i
			menor = e.Contador
		}
	}
	return victima
}

// LAPA desaloja la página con menos bits en uno en su contador y, a igual
// cantidad, la de contador más chico
type LAPA struct{}

func (LAPA) Nombre() string { return "LAPA" }
func (LAPA) AlIngresar(e *EntradaPagina, _ *Registro) { e.Contador = 0xFFFFFFFF }
func (LAPA) Envejecer(esp *Espacio) { envejecer(esp) }

func (LAPA) ElegirVictima(esp *Espacio) int {
	victima := -1
	var menorUnos int
	var menor uint32
	for i, e := range esp.Registro.Entradas {
		if !e.Usada || !e.EnRAM {
			continue
		}
		unos := bits.OnesCount32(e.Contador)
		if victima == -1 || unos < menorUnos || (unos == menorUnos && e.Contador < menor) {
			victima = i
			menorUnos = unos
			menor = e.Contador
		}
	}
	return victima
}

// SCFIFO es FIFO con segunda oportunidad: la página más vieja con el bit A
// prendido pierde el bit y vuelve a la cola con un tiempo nuevo
type SCFIFO struct{}

func (SCFIFO) Nombre() string { return "SCFIFO" }

func (SCFIFO) AlIngresar(e *EntradaPagina, r *Registro) {
	e.Tiempo = r.siguienteTiempo()
}

func (SCFIFO) Envejecer(*Espacio) {}

func (SCFIFO) ElegirVictima(esp *Espacio) int {
	r := &esp.Registro
	// Cada vuelta limpia un bit A, así que termina en a lo sumo EnRAM+1 vueltas
	for vuelta := 0; vuelta <= r.EnRAM; vuelta++ {
		victima := -1
		for i, e := range r.Entradas {
			if !e.Usada || !e.EnRAM {
				continue
			}
			if victima == -1 || e.Tiempo < r.Entradas[victima].Tiempo {
				victima = i
			}
		}
		if victima == -1 {
			return -1
		}

		e := &r.Entradas[victima]
		dir, ok := esp.fisica.Recorrer(esp.Raiz, e.VA, false)
		if !ok {
			return victima
		}
		pte := esp.fisica.LeerPTE(dir)
		if pte&PteA == 0 {
			return victima
		}
		esp.fisica.EscribirPTE(dir, pte&^PteA)
		e.Tiempo = r.siguienteTiempo()
	}
	return -1
}

// Ninguna deshabilita el paginado: las páginas nunca se desalojan
type Ninguna struct{}

func (Ninguna) Nombre() string { return "NINGUNO" }
func (Ninguna) AlIngresar(*EntradaPagina, *Registro) {}
func (Ninguna) Envejecer(*Espacio) {}
func (Ninguna) ElegirVictima(*Espacio) int { return -1 }
