package memoria

import (
	"bytes"
	"os"
	"testing"
)

func TestVolcar(t *testing.T) {
	f := NuevaFisica(32, nil)
	esp := nuevoEspacioPrueba(t, f, 3, 2, 4, NFUA{}, NuevoSwapEnMemoria())
	crecerDeAUna(t, esp, 3)
	for i := 0; i < 3; i++ {
		acceder(t, esp, uint64(i)*TamPagina, []byte{byte(0x30 + i)}, true)
	}
	antes := esp.Estado()

	v, err := esp.Volcar(t.TempDir())
	if err != nil {
		t.Fatalf("Volcar: %v", err)
	}
	if v.Paginas != 3 || v.EnRAM != 2 || v.EnSwap != 1 {
		t.Errorf("volcado inesperado: %+v", v)
	}

	contenido, err := os.ReadFile(v.ArchivoDmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(contenido) != 3*TamPagina {
		t.Fatalf("dump de %d bytes", len(contenido))
	}
	for i := 0; i < 3; i++ {
		if contenido[i*TamPagina] != byte(0x30+i) {
			t.Errorf("página %d del dump = %x", i, contenido[i*TamPagina])
		}
	}

	png, err := os.ReadFile(v.ArchivoPng)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("el mapa de residencia no es un PNG")
	}

	// El volcado no cambia la residencia
	for i, ep := range esp.Estado() {
		if ep.EnRAM != antes[i].EnRAM {
			t.Errorf("la página %d cambió de residencia", i)
		}
	}
}
