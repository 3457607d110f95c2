package nucleo

import (
	"sync/atomic"
	"testing"
)

func TestBsemExclusionMutua(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		const hilos, vueltas = 3, 20
		contador := uint64(u.Sbrk(8))
		u.EscribirEntero(contador, 0)

		s := u.BsemAlloc()
		if s < 0 {
			t.Errorf("BsemAlloc = %d", s)
			u.Exit(1)
		}
		var tids []int
		for i := 0; i < hilos; i++ {
			tids = append(tids, u.CrearHilo(func(u *Usuario) {
				for j := 0; j < vueltas; j++ {
					u.BsemDown(s)
					v := u.LeerEntero(contador)
					u.Ciclo()
					u.Dormir(0)
					u.EscribirEntero(contador, v+1)
					u.BsemUp(s)
				}
			}))
		}
		for _, tid := range tids {
			u.UnirHilo(tid)
		}
		if v := u.LeerEntero(contador); v != hilos*vueltas {
			t.Errorf("contador = %d, se esperaba %d", v, hilos*vueltas)
		}
		if r := u.BsemFree(s); r != 0 {
			t.Errorf("BsemFree = %d", r)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestBsemInvalidos(t *testing.T) {
	cfg := configPrueba(t)
	_, estado := correr(t, cfg, func(u *Usuario) {
		for _, s := range []int{-1, cfg.SemaforosBinarios} {
			if u.BsemDown(s) != -1 || u.BsemUp(s) != -1 || u.BsemFree(s) != -1 {
				t.Errorf("el semáforo %d fuera de rango se aceptó", s)
			}
		}

		s := u.BsemAlloc()
		u.BsemFree(s)
		if r := u.BsemFree(s); r != -1 {
			t.Errorf("liberar dos veces = %d", r)
		}
		if r := u.BsemDown(s); r != -1 {
			t.Errorf("tomar uno liberado = %d", r)
		}

		// El pool se agota
		var reservados []int
		for {
			s := u.BsemAlloc()
			if s < 0 {
				break
			}
			reservados = append(reservados, s)
		}
		if len(reservados) != cfg.SemaforosBinarios {
			t.Errorf("se reservaron %d de %d", len(reservados), cfg.SemaforosBinarios)
		}
		for _, s := range reservados {
			u.BsemFree(s)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestBsemFreeDespiertaALosQueEsperan(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		s := u.BsemAlloc()
		u.BsemDown(s)

		var r atomic.Int32
		r.Store(1)
		tid := u.CrearHilo(func(u *Usuario) {
			r.Store(int32(u.BsemDown(s)))
		})
		u.Dormir(3)
		u.BsemFree(s)
		u.UnirHilo(tid)
		if v := r.Load(); v != -1 {
			t.Errorf("BsemDown sobre un semáforo liberado = %d, se esperaba -1", v)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestSemaforoContador(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		const permisos = 2
		sem := u.NuevoSemaforoContador(permisos)
		if sem == nil {
			t.Error("NuevoSemaforoContador devolvió nil")
			u.Exit(1)
		}

		var adentro, maximo atomic.Int32
		var tids []int
		for i := 0; i < 4; i++ {
			tids = append(tids, u.CrearHilo(func(u *Usuario) {
				for j := 0; j < 5; j++ {
					sem.Bajar(u)
					v := adentro.Add(1)
					for {
						m := maximo.Load()
						if v <= m || maximo.CompareAndSwap(m, v) {
							break
						}
					}
					u.Dormir(1)
					adentro.Add(-1)
					sem.Subir(u)
				}
			}))
		}
		for _, tid := range tids {
			u.UnirHilo(tid)
		}

		if m := maximo.Load(); m > permisos || m == 0 {
			t.Errorf("hubo %d hilos adentro a la vez, el máximo es %d", m, permisos)
		}
		if v := sem.Valor(u); v != permisos {
			t.Errorf("valor final = %d, se esperaba %d", v, permisos)
		}
		sem.Liberar(u)
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestSemaforoContadorEnCero(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		sem := u.NuevoSemaforoContador(0)
		var paso atomic.Bool
		tid := u.CrearHilo(func(u *Usuario) {
			sem.Bajar(u)
			paso.Store(true)
		})
		u.Dormir(5)
		if paso.Load() {
			t.Error("Bajar no esperó con el semáforo en cero")
		}
		sem.Subir(u)
		u.UnirHilo(tid)
		if !paso.Load() {
			t.Error("el hilo no pasó después de Subir")
		}
		if v := sem.Valor(u); v != 0 {
			t.Errorf("valor final = %d", v)
		}
		sem.Liberar(u)
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}
