package memoria

import (
	"errors"
)

// Acceder simula los accesos de una instrucción de usuario a [va, va+len(buf)).
// Prende el bit A de cada página tocada y el bit D si es escritura.
// Devuelve cuántos bytes se transfirieron antes de cortar: una página en swap
// corta con *FalloPagina y una página inexistente o sin permisos con
// ErrDireccionInvalida.
func (e *Espacio) Acceder(va uint64, buf []byte, escritura bool) (int, error) {
	hecho := 0
	for hecho < len(buf) {
		a := va + uint64(hecho)
		va0 := RedondearAbajo(a)
		if va0 >= MaxVA {
			return hecho, ErrDireccionInvalida
		}
		dir, ok := e.fisica.Recorrer(e.Raiz, va0, false)
		if !ok {
			return hecho, ErrDireccionInvalida
		}
		e.metricaAcceso(escritura)

		pte := e.fisica.LeerPTE(dir)
		if pte&PteU == 0 {
			return hecho, ErrDireccionInvalida
		}
		if !pte.Valida() {
			if pte.EnSwap() {
				return hecho, &FalloPagina{VA: va0, Escritura: escritura}
			}
			return hecho, ErrDireccionInvalida
		}
		if (escritura && pte&PteW == 0) || (!escritura && pte&PteR == 0) {
			return hecho, ErrDireccionInvalida
		}

		pte |= PteA
		if escritura {
			pte |= PteD
		}
		e.fisica.EscribirPTE(dir, pte)

		pagina := e.fisica.Pagina(pte.DirFisica())[a-va0:]
		if escritura {
			hecho += copy(pagina, buf[hecho:])
		} else {
			hecho += copy(buf[hecho:], pagina)
		}
	}
	return hecho, nil
}

// CopiarHacia copia src a la dirección de usuario dst desde el kernel,
// subiendo del swap las páginas que hagan falta
func (e *Espacio) CopiarHacia(dst uint64, src []byte) error {
	return e.porPagina(dst, len(src), func(va uint64, desde, hasta int) error {
		return e.fisica.CopiarHacia(e.Raiz, va, src[desde:hasta])
	})
}

// CopiarDesde llena dst desde la dirección de usuario src,
// subiendo del swap las páginas que hagan falta
func (e *Espacio) CopiarDesde(dst []byte, src uint64) error {
	return e.porPagina(src, len(dst), func(va uint64, desde, hasta int) error {
		return e.fisica.CopiarDesde(e.Raiz, dst[desde:hasta], va)
	})
}

// porPagina parte [va, va+n) en tramos que no cruzan páginas y llama a op
// con cada uno, atendiendo los fallos de página que devuelva
func (e *Espacio) porPagina(va uint64, n int, op func(va uint64, desde, hasta int) error) error {
	hecho := 0
	for hecho < n {
		a := va + uint64(hecho)
		tramo := int(RedondearAbajo(a) + TamPagina - a)
		if tramo > n-hecho {
			tramo = n - hecho
		}
		for {
			err := op(a, hecho, hecho+tramo)
			if err == nil {
				break
			}
			var fallo *FalloPagina
			if !errors.As(err, &fallo) {
				return err
			}
			if err := e.ManejarFallo(fallo.VA); err != nil {
				return err
			}
		}
		hecho += tramo
	}
	return nil
}

// EstadoPagina describe dónde está una página de usuario
type EstadoPagina struct {
	VA       uint64
	EnRAM    bool
	EnSwap   bool
	Accedida bool
	Escrita  bool
	Contador uint32
	Tiempo   uint32
}

// Estado lista las páginas de [0, Tam) con su residencia
func (e *Espacio) Estado() []EstadoPagina {
	var estado []EstadoPagina
	for va := uint64(0); va < e.Tam; va += TamPagina {
		ep := EstadoPagina{VA: va}
		if pte, ok := e.fisica.BuscarPTE(e.Raiz, va); ok {
			ep.EnRAM = pte.Valida()
			ep.EnSwap = pte.EnSwap()
			ep.Accedida = pte&PteA != 0
			ep.Escrita = pte&PteD != 0
		}
		if i := e.Registro.Buscar(va, ep.EnRAM); i >= 0 {
			ep.Contador = e.Registro.Entradas[i].Contador
			ep.Tiempo = e.Registro.Entradas[i].Tiempo
		}
		estado = append(estado, ep)
	}
	return estado
}

// LeerPagina copia el contenido de la página va en buf sin cambiar su
// residencia: lee del marco si está en RAM o del swap si no
func (e *Espacio) LeerPagina(va uint64, buf []byte) error {
	pte, ok := e.fisica.BuscarPTE(e.Raiz, va)
	if !ok {
		return ErrDireccionInvalida
	}
	if pte.Valida() {
		copy(buf, e.fisica.Pagina(pte.DirFisica()))
		return nil
	}
	if !pte.EnSwap() {
		return ErrDireccionInvalida
	}
	i := e.Registro.Buscar(RedondearAbajo(va), false)
	if i < 0 {
		return ErrDireccionInvalida
	}
	swap, err := e.archivo()
	if err != nil {
		return err
	}
	_, err = swap.ReadAt(buf[:TamPagina], e.Registro.Entradas[i].Offset)
	return err
}
