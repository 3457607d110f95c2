package memoria

import (
	"errors"
	"fmt"
)

var (
	// ErrSinMemoria indica que no quedan marcos físicos libres
	ErrSinMemoria = errors.New("memoria: no hay marcos libres")

	// ErrPresupuestoExcedido indica que el proceso superó su máximo de páginas
	ErrPresupuestoExcedido = errors.New("memoria: presupuesto de páginas excedido")

	// ErrDireccionInvalida indica un acceso a una dirección sin mapear
	// o sin los permisos necesarios
	ErrDireccionInvalida = errors.New("memoria: dirección inválida")
)

// FalloPagina es el error que produce la MMU al tocar una página
// que está en swap. El kernel lo atiende y reintenta el acceso.
type FalloPagina struct {
	VA        uint64
	Escritura bool
}

func (f *FalloPagina) Error() string {
	return fmt.Sprintf("fallo de página en 0x%x (escritura=%v)", f.VA, f.Escritura)
}
