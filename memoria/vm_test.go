package memoria

import (
	"bytes"
	"testing"
)

func TestIndiceYConversiones(t *testing.T) {
	tests := []struct {
		nivel int
		va    uint64
		want  int
	}{
		{0, 0x0000, 0},
		{0, 0x1000, 1},
		{0, 0x1FF000, 511},
		{1, 0x200000, 1},
		{2, 0x40000000, 1},
		{2, Trampolin, 255},
	}
	for _, tt := range tests {
		if got := Indice(tt.nivel, tt.va); got != tt.want {
			t.Errorf("Indice(%d, 0x%x) = %d, want %d", tt.nivel, tt.va, got, tt.want)
		}
	}

	pa := BaseKernel + 7*TamPagina
	pte := PAaPTE(pa) | PteV | PteR
	if pte.DirFisica() != pa {
		t.Errorf("DirFisica = 0x%x, want 0x%x", pte.DirFisica(), pa)
	}
	if pte.Flags() != PteV|PteR {
		t.Errorf("Flags = 0x%x", pte.Flags())
	}
	if RedondearArriba(1) != TamPagina || RedondearAbajo(TamPagina+5) != TamPagina {
		t.Error("redondeo de páginas incorrecto")
	}
}

func TestReservarYLiberar(t *testing.T) {
	f := NuevaFisica(4, nil)
	pa, err := f.Reservar()
	if err != nil {
		t.Fatalf("Reservar: %v", err)
	}
	if pa != BaseKernel {
		t.Errorf("primer marco = 0x%x, want 0x%x", pa, BaseKernel)
	}
	if f.Pagina(pa)[0] != rellenoAsignado {
		t.Error("el marco reservado no tiene el relleno esperado")
	}
	for i := 0; i < 3; i++ {
		if _, err := f.Reservar(); err != nil {
			t.Fatalf("Reservar %d: %v", i, err)
		}
	}
	if _, err := f.Reservar(); err != ErrSinMemoria {
		t.Errorf("Reservar sin marcos = %v, want ErrSinMemoria", err)
	}
	f.Liberar(pa)
	if f.Libres() != 1 {
		t.Errorf("Libres = %d, want 1", f.Libres())
	}

	defer func() {
		if recover() == nil {
			t.Error("la doble liberación no hizo panic")
		}
	}()
	f.Liberar(pa)
}

func TestMapearTraducirDesmapear(t *testing.T) {
	f := NuevaFisica(16, nil)
	raiz, err := f.CrearTabla()
	if err != nil {
		t.Fatal(err)
	}
	mem, _ := f.ReservarLimpio()
	va := uint64(0x5000)
	if err := f.Mapear(raiz, va, TamPagina, mem, PteR|PteW|PteU); err != nil {
		t.Fatalf("Mapear: %v", err)
	}

	pa, ok := f.Traducir(raiz, va+0x123)
	if !ok || pa != mem+0x123 {
		t.Errorf("Traducir = 0x%x, %v; want 0x%x", pa, ok, mem+0x123)
	}
	if _, ok := f.Traducir(raiz, va+TamPagina); ok {
		t.Error("Traducir de página sin mapear debería fallar")
	}
	if _, ok := f.Traducir(raiz, MaxVA+TamPagina); ok {
		t.Error("Traducir fuera de rango debería fallar")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("remapear no hizo panic")
			}
		}()
		_ = f.Mapear(raiz, va, TamPagina, mem, PteR|PteU)
	}()

	var quitadas []uint64
	f.Desmapear(raiz, va, 1, true, func(a uint64, _ PTE) { quitadas = append(quitadas, a) })
	if len(quitadas) != 1 || quitadas[0] != va {
		t.Errorf("quitadas = %v", quitadas)
	}
	if _, ok := f.Traducir(raiz, va); ok {
		t.Error("la página sigue mapeada")
	}

	f.LiberarTablas(raiz)
	if f.Libres() != 16 {
		t.Errorf("Libres = %d, want 16 (pérdida de marcos)", f.Libres())
	}
}

func TestDesmapearSinMapearHacePanic(t *testing.T) {
	f := NuevaFisica(8, nil)
	raiz, _ := f.CrearTabla()
	defer func() {
		if recover() == nil {
			t.Error("desmapear una página inexistente no hizo panic")
		}
	}()
	f.Desmapear(raiz, 0, 1, true, nil)
}

func TestClonarCopiaContenidoYEntradasEnSwap(t *testing.T) {
	f := NuevaFisica(32, nil)
	viejo, _ := f.CrearTabla()
	for i := uint64(0); i < 2; i++ {
		mem, _ := f.ReservarLimpio()
		f.Pagina(mem)[0] = byte(0xA0 + i)
		if err := f.Mapear(viejo, i*TamPagina, TamPagina, mem, PteR|PteW|PteU); err != nil {
			t.Fatal(err)
		}
	}
	// Una tercera página que figura en swap
	dir, ok := f.Recorrer(viejo, 2*TamPagina, true)
	if !ok {
		t.Fatal("Recorrer con crear falló")
	}
	f.EscribirPTE(dir, PteR|PteW|PteU|PtePG)

	nuevo, _ := f.CrearTabla()
	if err := f.Clonar(viejo, nuevo, 3*TamPagina); err != nil {
		t.Fatalf("Clonar: %v", err)
	}

	for i := uint64(0); i < 2; i++ {
		paViejo, _ := f.Traducir(viejo, i*TamPagina)
		paNuevo, _ := f.Traducir(nuevo, i*TamPagina)
		if paViejo == paNuevo {
			t.Errorf("página %d comparte marco", i)
		}
		if f.Pagina(paNuevo)[0] != byte(0xA0+i) {
			t.Errorf("página %d con contenido %x", i, f.Pagina(paNuevo)[0])
		}
	}
	pte, ok := f.BuscarPTE(nuevo, 2*TamPagina)
	if !ok || !pte.EnSwap() || pte.Valida() {
		t.Errorf("la entrada en swap no se copió: 0x%x", pte)
	}
}

func TestClonarDeshaceAnteFaltaDeMemoria(t *testing.T) {
	f := NuevaFisica(12, nil)
	esp := NuevoEspacio(f, ConfigEspacio{Politica: Ninguna{}}, nil)
	if err := esp.Preparar(3); err != nil {
		t.Fatal(err)
	}
	if _, err := esp.Crecer(4 * TamPagina); err != nil {
		t.Fatalf("Crecer: %v", err)
	}
	libresAntes := f.Libres()

	hijo := NuevoEspacio(f, ConfigEspacio{Politica: Ninguna{}}, nil)
	if err := hijo.Preparar(4); err != nil {
		t.Fatal(err)
	}
	if err := esp.Clonar(hijo); err != ErrSinMemoria {
		t.Fatalf("Clonar = %v, want ErrSinMemoria", err)
	}
	hijo.Liberar()
	if f.Libres() != libresAntes {
		t.Errorf("Libres = %d, want %d", f.Libres(), libresAntes)
	}

	esp.Liberar()
	if f.Libres() != 12 {
		t.Errorf("Libres = %d, want 12", f.Libres())
	}
}

func TestCopiasDelKernel(t *testing.T) {
	f := NuevaFisica(16, nil)
	esp := NuevoEspacio(f, ConfigEspacio{Politica: Ninguna{}}, nil)
	if err := esp.Preparar(1); err != nil {
		t.Fatal(err)
	}
	if _, err := esp.Crecer(2 * TamPagina); err != nil {
		t.Fatal(err)
	}

	// Cruza el límite entre las dos páginas
	dato := []byte("hola\x00mundo")
	va := uint64(TamPagina - 3)
	if err := esp.CopiarHacia(va, dato); err != nil {
		t.Fatalf("CopiarHacia: %v", err)
	}
	leido := make([]byte, len(dato))
	if err := esp.CopiarDesde(leido, va); err != nil {
		t.Fatalf("CopiarDesde: %v", err)
	}
	if !bytes.Equal(leido, dato) {
		t.Errorf("leído %q, want %q", leido, dato)
	}

	if err := esp.CopiarHacia(8*TamPagina, dato); err != ErrDireccionInvalida {
		t.Errorf("CopiarHacia fuera del espacio = %v", err)
	}
}
