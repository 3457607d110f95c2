package memoria

import (
	"fmt"
)

// TablaPaginas es la dirección física de la tabla raíz de un espacio
type TablaPaginas uint64

// CrearTabla reserva una tabla raíz vacía
func (f *Fisica) CrearTabla() (TablaPaginas, error) {
	pa, err := f.ReservarLimpio()
	if err != nil {
		return 0, err
	}
	return TablaPaginas(pa), nil
}

// Recorrer devuelve la dirección de la PTE de nivel 0 que corresponde a va.
// Con crear en true reserva las tablas intermedias que falten.
// Devuelve false si falta una tabla y no se pudo (o no se quiso) crear.
func (f *Fisica) Recorrer(raiz TablaPaginas, va uint64, crear bool) (uint64, bool) {
	if va >= MaxVA {
		panic(fmt.Sprintf("memoria: recorrer: va 0x%x fuera de rango", va))
	}

	tabla := uint64(raiz)
	for nivel := NivelesTabla - 1; nivel > 0; nivel-- {
		dir := tabla + uint64(Indice(nivel, va))*8
		pte := f.LeerPTE(dir)
		if pte.Valida() {
			tabla = pte.DirFisica()
			continue
		}
		if !crear {
			return 0, false
		}
		nueva, err := f.ReservarLimpio()
		if err != nil {
			return 0, false
		}
		f.EscribirPTE(dir, PAaPTE(nueva)|PteV)
		tabla = nueva
	}
	return tabla + uint64(Indice(0, va))*8, true
}

// BuscarPTE devuelve la entrada hoja de va, si existen las tablas intermedias
func (f *Fisica) BuscarPTE(raiz TablaPaginas, va uint64) (PTE, bool) {
	if va >= MaxVA {
		return 0, false
	}
	dir, ok := f.Recorrer(raiz, va, false)
	if !ok {
		return 0, false
	}
	return f.LeerPTE(dir), true
}

// DireccionUsuario devuelve la dirección física del marco de va si la página
// es válida y accesible desde modo usuario
func (f *Fisica) DireccionUsuario(raiz TablaPaginas, va uint64) (uint64, bool) {
	pte, ok := f.BuscarPTE(raiz, va)
	if !ok || !pte.Valida() || pte&PteU == 0 {
		return 0, false
	}
	return pte.DirFisica(), true
}

// Traducir lleva una dirección virtual de usuario a su dirección física
func (f *Fisica) Traducir(raiz TablaPaginas, va uint64) (uint64, bool) {
	pa, ok := f.DireccionUsuario(raiz, RedondearAbajo(va))
	if !ok {
		return 0, false
	}
	return pa + va%TamPagina, true
}

// Mapear instala entradas para [va, va+tam) apuntando a pa en adelante.
// Si falla al reservar una tabla intermedia devuelve ErrSinMemoria y deja
// instaladas las entradas que ya había puesto.
func (f *Fisica) Mapear(raiz TablaPaginas, va, tam, pa uint64, permisos PTE) error {
	if tam == 0 {
		panic("memoria: mapear: tamaño cero")
	}

	a := RedondearAbajo(va)
	ultima := RedondearAbajo(va + tam - 1)
	for {
		dir, ok := f.Recorrer(raiz, a, true)
		if !ok {
			return ErrSinMemoria
		}
		if f.LeerPTE(dir).Valida() {
			panic(fmt.Sprintf("memoria: mapear: va 0x%x ya mapeada", a))
		}
		f.EscribirPTE(dir, PAaPTE(pa)|permisos|PteV)
		if a == ultima {
			break
		}
		a += TamPagina
		pa += TamPagina
	}
	return nil
}

// Desmapear quita n páginas desde va. Cada página debe estar mapeada,
// ya sea en RAM o en swap. Con liberar en true devuelve los marcos
// residentes. alQuitar, si no es nil, se llama con cada entrada antes de borrarla.
func (f *Fisica) Desmapear(raiz TablaPaginas, va uint64, n int, liberar bool, alQuitar func(va uint64, pte PTE)) {
	if va%TamPagina != 0 {
		panic("memoria: desmapear: va desalineada")
	}

	for a := va; a < va+uint64(n)*TamPagina; a += TamPagina {
		dir, ok := f.Recorrer(raiz, a, false)
		if !ok {
			panic(fmt.Sprintf("memoria: desmapear: sin tabla para 0x%x", a))
		}
		pte := f.LeerPTE(dir)
		if !pte.Valida() && !pte.EnSwap() {
			panic(fmt.Sprintf("memoria: desmapear: 0x%x no mapeada", a))
		}
		if pte.Flags() == PteV {
			panic("memoria: desmapear: la entrada no es hoja")
		}
		if liberar && pte.Valida() {
			f.Liberar(pte.DirFisica())
		}
		if alQuitar != nil {
			alQuitar(a, pte)
		}
		f.EscribirPTE(dir, 0)
	}
}

// LiberarTablas libera recursivamente las tablas de páginas.
// Todas las hojas tienen que haber sido quitadas antes.
func (f *Fisica) LiberarTablas(raiz TablaPaginas) {
	f.liberarNivel(uint64(raiz))
}

func (f *Fisica) liberarNivel(tabla uint64) {
	for i := 0; i < EntradasPorTabla; i++ {
		dir := tabla + uint64(i)*8
		pte := f.LeerPTE(dir)
		if !pte.Valida() {
			continue
		}
		if pte.Hoja() {
			panic("memoria: liberar tablas: quedó una hoja mapeada")
		}
		f.liberarNivel(pte.DirFisica())
		f.EscribirPTE(dir, 0)
	}
	f.Liberar(tabla)
}

// LiberarUsuario quita la memoria de usuario [0, tam) y luego las tablas
func (f *Fisica) LiberarUsuario(raiz TablaPaginas, tam uint64) {
	if tam > 0 {
		f.Desmapear(raiz, 0, int(RedondearArriba(tam)/TamPagina), true, nil)
	}
	f.LiberarTablas(raiz)
}

// Clonar copia la memoria de usuario [0, tam) de viejo en nuevo.
// Las páginas residentes se duplican en marcos nuevos y las que están en
// swap se copian como entradas sin marco. Ante un error deshace todo lo
// copiado hasta el momento.
func (f *Fisica) Clonar(viejo, nuevo TablaPaginas, tam uint64) error {
	var i uint64
	var err error
	for i = 0; i < tam; i += TamPagina {
		dirViejo, ok := f.Recorrer(viejo, i, false)
		if !ok {
			panic("memoria: clonar: falta la entrada de origen")
		}
		pte := f.LeerPTE(dirViejo)
		if !pte.Valida() && !pte.EnSwap() {
			panic("memoria: clonar: página de origen no presente")
		}

		if !pte.Valida() {
			dirNuevo, ok := f.Recorrer(nuevo, i, true)
			if !ok {
				err = ErrSinMemoria
				break
			}
			f.EscribirPTE(dirNuevo, pte.Flags())
			continue
		}

		var mem uint64
		mem, err = f.Reservar()
		if err != nil {
			break
		}
		copy(f.Pagina(mem), f.Pagina(pte.DirFisica()))
		if err = f.Mapear(nuevo, i, TamPagina, mem, pte.Flags()&^PteV); err != nil {
			f.Liberar(mem)
			break
		}
	}
	if err != nil {
		f.Desmapear(nuevo, 0, int(i/TamPagina), true, nil)
		return err
	}
	return nil
}

// paginaUsuario resuelve el marco de la página de va para el kernel.
// Una página en swap devuelve *FalloPagina para que quien llama la traiga.
func (f *Fisica) paginaUsuario(raiz TablaPaginas, va uint64, escritura bool) (uint64, error) {
	pte, ok := f.BuscarPTE(raiz, va)
	if !ok || pte&PteU == 0 {
		return 0, ErrDireccionInvalida
	}
	if !pte.Valida() {
		if pte.EnSwap() {
			return 0, &FalloPagina{VA: RedondearAbajo(va), Escritura: escritura}
		}
		return 0, ErrDireccionInvalida
	}
	return pte.DirFisica(), nil
}

// CopiarHacia copia src a la dirección virtual dst del espacio de usuario
func (f *Fisica) CopiarHacia(raiz TablaPaginas, dst uint64, src []byte) error {
	for len(src) > 0 {
		va0 := RedondearAbajo(dst)
		pa0, err := f.paginaUsuario(raiz, va0, true)
		if err != nil {
			return err
		}
		off := dst - va0
		n := copy(f.Pagina(pa0)[off:], src)
		src = src[n:]
		dst = va0 + TamPagina
	}
	return nil
}

// CopiarDesde llena dst con los bytes que están en la dirección virtual src
func (f *Fisica) CopiarDesde(raiz TablaPaginas, dst []byte, src uint64) error {
	for len(dst) > 0 {
		va0 := RedondearAbajo(src)
		pa0, err := f.paginaUsuario(raiz, va0, false)
		if err != nil {
			return err
		}
		off := src - va0
		n := copy(dst, f.Pagina(pa0)[off:])
		dst = dst[n:]
		src = va0 + TamPagina
	}
	return nil
}
