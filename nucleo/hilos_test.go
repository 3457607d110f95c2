package nucleo

import (
	"sync/atomic"
	"testing"
)

func TestCrearYUnirHilo(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		var tidVisto atomic.Int64
		tid := u.CrearHilo(func(u *Usuario) {
			tidVisto.Store(int64(u.Tid()))
			if u.Pid() != 2 {
				t.Errorf("el hilo ve pid %d", u.Pid())
			}
			u.Dormir(2)
			u.SalirHilo(7)
		})
		if tid <= 0 || tid == u.Tid() {
			t.Errorf("CrearHilo = %d", tid)
		}

		st, r := u.UnirHilo(tid)
		if r != 0 || st != 7 {
			t.Errorf("UnirHilo = (%d, %d), se esperaba (7, 0)", st, r)
		}
		if int(tidVisto.Load()) != tid {
			t.Errorf("el hilo vio tid %d, CrearHilo devolvió %d", tidVisto.Load(), tid)
		}
		if _, r := u.UnirHilo(tid); r != -1 {
			t.Errorf("unir un hilo ya unido = %d", r)
		}
		if _, r := u.UnirHilo(u.Tid()); r != -1 {
			t.Errorf("unirse a sí mismo = %d", r)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestHiloQueVuelveSaleConCero(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		tid := u.CrearHilo(func(u *Usuario) {})
		if st, r := u.UnirHilo(tid); r != 0 || st != 0 {
			t.Errorf("UnirHilo = (%d, %d)", st, r)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestDosHilosUnenAlMismo(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		objetivo := u.CrearHilo(func(u *Usuario) {
			u.Dormir(5)
			u.SalirHilo(7)
		})

		var exitos, fallos, estados atomic.Int32
		unir := func(u *Usuario) {
			st, r := u.UnirHilo(objetivo)
			if r == 0 {
				exitos.Add(1)
				estados.Store(int32(st))
			} else {
				fallos.Add(1)
			}
		}
		a := u.CrearHilo(unir)
		b := u.CrearHilo(unir)
		u.UnirHilo(a)
		u.UnirHilo(b)

		if exitos.Load() != 1 || fallos.Load() != 1 {
			t.Errorf("éxitos=%d fallos=%d, se esperaba uno de cada uno", exitos.Load(), fallos.Load())
		}
		if estados.Load() != 7 {
			t.Errorf("estado unido = %d", estados.Load())
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestTablaDeHilosLlena(t *testing.T) {
	cfg := configPrueba(t)
	_, estado := correr(t, cfg, func(u *Usuario) {
		s := u.BsemAlloc()
		u.BsemDown(s)

		var tids []int
		for i := 0; i < cfg.HilosPorProceso-1; i++ {
			tid := u.CrearHilo(func(u *Usuario) {
				u.BsemDown(s)
				u.BsemUp(s)
			})
			if tid < 0 {
				t.Errorf("CrearHilo %d falló con lugar en la tabla", i)
			}
			tids = append(tids, tid)
		}
		if tid := u.CrearHilo(func(u *Usuario) {}); tid != -1 {
			t.Errorf("CrearHilo con la tabla llena = %d", tid)
		}

		u.BsemUp(s)
		for _, tid := range tids {
			if _, r := u.UnirHilo(tid); r != 0 {
				t.Errorf("UnirHilo(%d) = %d", tid, r)
			}
		}
		u.BsemFree(s)

		if tid := u.CrearHilo(func(u *Usuario) {}); tid < 0 {
			t.Error("CrearHilo falló después de unir a todos")
		} else {
			u.UnirHilo(tid)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestUltimoHiloTerminaElProceso(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		pid := u.Fork(func(u *Usuario) {
			u.CrearHilo(func(u *Usuario) {
				u.Dormir(10)
				u.SalirHilo(9)
			})
			u.SalirHilo(1)
		})
		if hijo, st := u.Wait(); hijo != pid || st != 9 {
			t.Errorf("Wait = (%d, %d), se esperaba (%d, 9)", hijo, st, pid)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestExitTerminaLosDemasHilos(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		var vueltas atomic.Int64
		pid := u.Fork(func(u *Usuario) {
			for i := 0; i < 2; i++ {
				u.CrearHilo(func(u *Usuario) {
					for {
						vueltas.Add(1)
						u.Dormir(1)
					}
				})
			}
			u.Dormir(3)
			u.Exit(4)
		})
		if hijo, st := u.Wait(); hijo != pid || st != 4 {
			t.Errorf("Wait = (%d, %d), se esperaba (%d, 4)", hijo, st, pid)
		}
		// Después de wait no queda ningún hilo del hijo corriendo
		antes := vueltas.Load()
		u.Dormir(10)
		if despues := vueltas.Load(); despues != antes {
			t.Errorf("los hilos siguieron corriendo: %d -> %d", antes, despues)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestForkDesdeUnHilo(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		var resultado atomic.Int32
		resultado.Store(-100)
		tid := u.CrearHilo(func(u *Usuario) {
			pid := u.Fork(func(u *Usuario) {
				if len(u.n.Procesos()) == 0 {
					u.Exit(1)
				}
				u.Exit(3)
			})
			_, st := u.Wait()
			if pid > 0 {
				resultado.Store(int32(st))
			}
		})
		u.UnirHilo(tid)
		if r := resultado.Load(); r != 3 {
			t.Errorf("el hijo del hilo terminó con %d", r)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}
