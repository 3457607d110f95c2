package nucleo

import (
	"testing"

	"golang.org/x/sync/errgroup"
)

func debePanic(t *testing.T, motivo string, f func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != motivo {
			t.Errorf("panic = %v, se esperaba %q", r, motivo)
		}
	}()
	f()
}

func TestCerrojoDobleAdquirir(t *testing.T) {
	c := &CPU{}
	var l Cerrojo
	l.iniciar("prueba")
	l.Adquirir(c)
	if !l.Tomado(c) {
		t.Fatal("el cerrojo no figura tomado")
	}
	if l.Tomado(&CPU{id: 1}) {
		t.Error("el cerrojo figura tomado por otra CPU")
	}
	debePanic(t, "acquire prueba", func() { l.Adquirir(c) })
}

func TestCerrojoExclusionMutua(t *testing.T) {
	var l Cerrojo
	l.iniciar("contador")
	contador := 0

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		c := &CPU{id: i}
		g.Go(func() error {
			for j := 0; j < 1000; j++ {
				l.Adquirir(c)
				contador++
				l.Liberar(c)
			}
			if c.noff != 0 {
				t.Errorf("cpu %d terminó con noff=%d", c.id, c.noff)
			}
			return nil
		})
	}
	g.Wait()
	if contador != 8000 {
		t.Errorf("contador = %d, se esperaba 8000", contador)
	}
}

func TestCerrojoLiberarSinTomar(t *testing.T) {
	var l Cerrojo
	l.iniciar("prueba")
	debePanic(t, "release prueba", func() { l.Liberar(&CPU{}) })
}

func TestCerrojoSinCPU(t *testing.T) {
	var l Cerrojo
	l.iniciar("prueba")
	l.Adquirir(nil)
	if !l.Tomado(nil) {
		t.Error("el cerrojo tomado sin CPU no figura tomado")
	}
	l.Liberar(nil)
	if l.Tomado(nil) {
		t.Error("el cerrojo sigue tomado")
	}
}

func TestPushOffPopOff(t *testing.T) {
	c := &CPU{intrOn: true}
	var a, b Cerrojo
	a.iniciar("a")
	b.iniciar("b")

	a.Adquirir(c)
	b.Adquirir(c)
	if c.intrOn || c.noff != 2 {
		t.Fatalf("intrOn=%v noff=%d con dos cerrojos", c.intrOn, c.noff)
	}
	b.Liberar(c)
	if c.intrOn {
		t.Error("las interrupciones volvieron con un cerrojo tomado")
	}
	a.Liberar(c)
	if !c.intrOn || c.noff != 0 {
		t.Errorf("intrOn=%v noff=%d sin cerrojos", c.intrOn, c.noff)
	}

	// Si estaban apagadas antes, siguen apagadas
	c.intrOn = false
	a.Adquirir(c)
	a.Liberar(c)
	if c.intrOn {
		t.Error("popOff prendió interrupciones que estaban apagadas")
	}
}

func TestPopOffInvalido(t *testing.T) {
	debePanic(t, "pop_off", func() { (&CPU{}).popOff() })

	c := &CPU{}
	c.pushOff()
	c.intrOn = true
	debePanic(t, "pop_off - interruptible", func() { c.popOff() })
}

func TestSchedVerificaInvariantes(t *testing.T) {
	n := &Nucleo{}
	nuevoHilo := func() (*CPU, *Hilo) {
		c := &CPU{}
		h := &Hilo{cpu: c, estado: HiloListo}
		h.lock.iniciar("thread")
		return c, h
	}

	t.Run("sin cerrojo", func(t *testing.T) {
		_, h := nuevoHilo()
		debePanic(t, "sched thread->lock", func() { n.sched(h) })
	})
	t.Run("otro cerrojo tomado", func(t *testing.T) {
		c, h := nuevoHilo()
		var otro Cerrojo
		otro.iniciar("otro")
		h.lock.Adquirir(c)
		otro.Adquirir(c)
		debePanic(t, "sched locks", func() { n.sched(h) })
	})
	t.Run("corriendo", func(t *testing.T) {
		c, h := nuevoHilo()
		h.lock.Adquirir(c)
		h.estado = HiloCorriendo
		debePanic(t, "sched running", func() { n.sched(h) })
	})
	t.Run("interrumpible", func(t *testing.T) {
		c, h := nuevoHilo()
		h.lock.Adquirir(c)
		c.intrOn = true
		debePanic(t, "sched interruptible", func() { n.sched(h) })
	})
}

func TestSwtch(t *testing.T) {
	var pasos []string
	principal := contextoActual()
	var otro *Contexto
	otro = nuevoContexto(func() {
		pasos = append(pasos, "otro 1")
		swtch(otro, principal)
		pasos = append(pasos, "otro 2")
		swtch(otro, principal)
	})

	swtch(principal, otro)
	pasos = append(pasos, "principal 1")
	swtch(principal, otro)
	pasos = append(pasos, "principal 2")
	otro.descartar()

	esperado := []string{"otro 1", "principal 1", "otro 2", "principal 2"}
	if len(pasos) != len(esperado) {
		t.Fatalf("pasos = %v", pasos)
	}
	for i := range esperado {
		if pasos[i] != esperado[i] {
			t.Errorf("paso %d = %q, se esperaba %q", i, pasos[i], esperado[i])
		}
	}
}
