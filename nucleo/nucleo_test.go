package nucleo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

func configPrueba(t *testing.T) Config {
	return Config{
		LogLevel:           "ERROR",
		CantidadCPUs:       2,
		CantidadProcesos:   8,
		HilosPorProceso:    6,
		MarcosFisicos:      512,
		MaxPaginasFisicas:  4,
		MaxPaginasTotales:  12,
		AlgoritmoReemplazo: "SCFIFO",
		SemaforosBinarios:  16,
		IntervaloTimerMs:   1,
		DumpPath:           t.TempDir(),
		TamPilaHilo:        MAX_STACK_SIZE,
	}
}

// correr arranca un kernel con cfg y corre prueba como primer hijo de init
// (pid 2). Devuelve el estado de salida de la prueba. El kernel se apaga
// antes de volver.
func correr(t *testing.T, cfg Config, prueba Programa) (*Nucleo, int) {
	t.Helper()
	n, err := Nuevo(cfg, nil, nil, utils.LoggerDescarte())
	if err != nil {
		t.Fatalf("Nuevo: %v", err)
	}

	ctx, cancelar := context.WithCancel(context.Background())
	defer cancelar()

	resultado := make(chan int, 1)
	programaInit := func(u *Usuario) {
		pid := u.Fork(prueba)
		if pid < 0 {
			resultado <- -100
		}
		for pid > 0 {
			hijo, estado := u.Wait()
			if hijo == pid {
				resultado <- estado
				break
			}
			if hijo < 0 {
				resultado <- -100
				break
			}
		}
		for {
			u.Dormir(1000)
		}
	}

	errores := make(chan error, 1)
	go func() {
		errores <- n.Arrancar(ctx, programaInit)
	}()

	var estado int
	select {
	case estado = <-resultado:
	case err := <-errores:
		t.Fatalf("el kernel se detuvo antes de terminar la prueba: %v", err)
	case <-time.After(30 * time.Second):
		t.Fatalf("la prueba no terminó")
	}

	cancelar()
	select {
	case err := <-errores:
		if err != nil {
			t.Errorf("Arrancar: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("el kernel no se detuvo")
	}
	return n, estado
}

func TestNuevoRechazaConfiguracionInvalida(t *testing.T) {
	cfg := configPrueba(t)
	cfg.AlgoritmoReemplazo = "LRU"
	if _, err := Nuevo(cfg, nil, nil, utils.LoggerDescarte()); err == nil {
		t.Fatal("Nuevo aceptó un algoritmo desconocido")
	}
}

func TestArrancarDosVeces(t *testing.T) {
	n, _ := correr(t, configPrueba(t), func(u *Usuario) {})
	if err := n.Arrancar(context.Background(), func(u *Usuario) {}); err == nil {
		t.Error("un kernel arrancó dos veces")
	}
}

func TestForkWaitDevuelveEstado(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		padre := u.Pid()
		var pidHijo int
		pid := u.Fork(func(u *Usuario) {
			pidHijo = u.Pid()
			u.Exit(7)
		})
		if pid <= padre {
			t.Errorf("Fork = %d, se esperaba un pid mayor a %d", pid, padre)
			u.Exit(1)
		}

		hijo, st := u.Wait()
		if hijo != pid || st != 7 {
			t.Errorf("Wait = (%d, %d), se esperaba (%d, 7)", hijo, st, pid)
		}
		if pidHijo != pid {
			t.Errorf("el hijo vio pid %d, fork devolvió %d", pidHijo, pid)
		}
		if hijo, _ := u.Wait(); hijo != -1 {
			t.Errorf("Wait sin hijos = %d, se esperaba -1", hijo)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestForkCopiaLaMemoria(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		dir := uint64(u.Sbrk(memoria.TamPagina))
		u.EscribirEntero(dir, 41)

		u.Fork(func(u *Usuario) {
			if v := u.LeerEntero(dir); v != 41 {
				u.Exit(v)
			}
			u.EscribirEntero(dir, 99)
		})
		if _, st := u.Wait(); st != 0 {
			t.Errorf("el hijo leyó %d, se esperaba 41", st)
		}
		if v := u.LeerEntero(dir); v != 41 {
			t.Errorf("el padre lee %d después de que el hijo escribiera su copia", v)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestProcesosDuranteFork(t *testing.T) {
	n, estado := correr(t, configPrueba(t), func(u *Usuario) {
		listo := make(chan struct{})
		consultas := make(chan int)
		// La consola recorre la tabla mientras se copian espacios paginados
		go func() {
			cuenta := 0
			for {
				select {
				case <-listo:
					consultas <- cuenta
					return
				default:
					u.n.Procesos()
					cuenta++
				}
			}
		}()

		u.Fork(func(u *Usuario) {
			const paginas = 6
			base := uint64(u.Sbrk(paginas * memoria.TamPagina))
			for i := 0; i < paginas; i++ {
				u.EscribirEntero(base+uint64(i*memoria.TamPagina), 10+i)
			}
			for i := 0; i < paginas; i++ {
				i := i
				u.Fork(func(u *Usuario) {
					if v := u.LeerEntero(base + uint64(i*memoria.TamPagina)); v != 10+i {
						u.Exit(1)
					}
				})
				if _, st := u.Wait(); st != 0 {
					u.Exit(st)
				}
			}
		})
		if _, st := u.Wait(); st != 0 {
			t.Errorf("un hijo leyó mal su copia, estado %d", st)
		}
		close(listo)
		if c := <-consultas; c == 0 {
			t.Error("la consola no llegó a consultar la tabla")
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
	if len(n.Procesos()) != 1 {
		t.Errorf("quedaron %d procesos, se esperaba sólo init", len(n.Procesos()))
	}
}

func TestTablaDeProcesosLlena(t *testing.T) {
	cfg := configPrueba(t)
	cfg.CantidadProcesos = 4

	_, estado := correr(t, cfg, func(u *Usuario) {
		dormilon := func(u *Usuario) {
			for {
				u.Dormir(1)
			}
		}
		// init, la prueba y dos hijos llenan la tabla
		a := u.Fork(dormilon)
		b := u.Fork(dormilon)
		if a < 0 || b < 0 {
			t.Errorf("Fork = %d, %d con lugar en la tabla", a, b)
		}
		if c := u.Fork(dormilon); c != -1 {
			t.Errorf("Fork con la tabla llena = %d, se esperaba -1", c)
		}

		u.Kill(a, SIGKILL)
		u.Kill(b, SIGKILL)
		for i := 0; i < 2; i++ {
			if pid, st := u.Wait(); pid < 0 || st != -1 {
				t.Errorf("Wait = (%d, %d), se esperaba un hijo matado con -1", pid, st)
			}
		}
		// Con lugar libre vuelve a andar
		if c := u.Fork(func(u *Usuario) {}); c < 0 {
			t.Error("Fork falló después de liberar la tabla")
		}
		u.Wait()
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestHuerfanosPasanAInit(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		listo := make(chan int, 1)
		u.Fork(func(u *Usuario) {
			u.Fork(func(u *Usuario) {
				u.Dormir(5)
				listo <- u.Pid()
			})
			// Termina sin esperar a su hijo
		})
		u.Wait()
		if hijo, _ := u.Wait(); hijo != -1 {
			t.Errorf("la prueba recibió al nieto %d en wait", hijo)
		}
		for i := 0; ; i++ {
			if i == 5000 {
				t.Error("el huérfano no terminó")
				break
			}
			select {
			case <-listo:
				return
			default:
				u.Dormir(1)
			}
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestDormirYUptime(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		antes := u.Uptime()
		if r := u.Dormir(5); r != 0 {
			t.Errorf("Dormir = %d", r)
		}
		if despues := u.Uptime(); despues-antes < 5 {
			t.Errorf("pasaron %d ticks durmiendo 5", despues-antes)
		}
		if r := u.Dormir(-3); r != 0 {
			t.Errorf("Dormir(-3) = %d", r)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestLlamadaDesconocida(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		if r := entero(u.llamar(99)); r != -1 {
			t.Errorf("llamada 99 = %d, se esperaba -1", r)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestAccesoInvalidoMataAlProceso(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		pid := u.Fork(func(u *Usuario) {
			u.LeerEntero(0x400000)
			u.Exit(0)
		})
		if hijo, st := u.Wait(); hijo != pid || st != -1 {
			t.Errorf("Wait = (%d, %d), se esperaba (%d, -1)", hijo, st, pid)
		}

		pid = u.Fork(func(u *Usuario) {
			u.saltar(0x10)
			u.Exit(0)
		})
		if hijo, st := u.Wait(); hijo != pid || st != -1 {
			t.Errorf("salto a texto inválido: Wait = (%d, %d)", hijo, st)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestSbrk(t *testing.T) {
	_, estado := correr(t, configPrueba(t), func(u *Usuario) {
		viejo := u.Sbrk(100)
		if viejo < 0 {
			t.Errorf("Sbrk(100) = %d", viejo)
			u.Exit(1)
		}
		if tam := u.Sbrk(0); tam != viejo+100 {
			t.Errorf("Sbrk(0) = %d, se esperaba %d", tam, viejo+100)
		}
		if r := u.Sbrk(-100); r != viejo+100 {
			t.Errorf("Sbrk(-100) = %d", r)
		}
		if r := u.Sbrk(-1 << 30); r != -1 {
			t.Errorf("achicar de más = %d, se esperaba -1", r)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestSwapIdaYVuelta(t *testing.T) {
	for _, algoritmo := range []string{"NFUA", "LAPA", "SCFIFO"} {
		algoritmo := algoritmo
		t.Run(algoritmo, func(t *testing.T) {
			cfg := configPrueba(t)
			cfg.AlgoritmoReemplazo = algoritmo

			var info InfoProceso
			var volcado *memoria.Volcado
			_, estado := correr(t, cfg, func(u *Usuario) {
				// El nieto tiene pid 3 y es el primero que se pagina
				pid := u.Fork(func(u *Usuario) {
					const paginas = 8
					base := uint64(u.Sbrk(paginas * memoria.TamPagina))
					for i := 0; i < paginas; i++ {
						u.EscribirEntero(base+uint64(i*memoria.TamPagina), 1000+i)
					}
					for vuelta := 0; vuelta < 2; vuelta++ {
						for i := 0; i < paginas; i++ {
							if v := u.LeerEntero(base + uint64(i*memoria.TamPagina)); v != 1000+i {
								t.Errorf("página %d: leído %d, se esperaba %d", i, v, 1000+i)
								u.Exit(1)
							}
						}
					}
					for _, p := range u.n.Procesos() {
						if p.Pid == u.Pid() {
							info = p
						}
					}
					var err error
					volcado, err = u.n.Volcar(u.Pid())
					if err != nil {
						t.Errorf("Volcar: %v", err)
					}
				})
				if hijo, st := u.Wait(); hijo != pid || st != 0 {
					t.Errorf("Wait = (%d, %d), se esperaba (%d, 0)", hijo, st, pid)
				}
			})
			if estado != 0 {
				t.Fatalf("estado de la prueba = %d", estado)
			}

			if info.EnRAM > cfg.MaxPaginasFisicas {
				t.Errorf("%d páginas en RAM, el máximo es %d", info.EnRAM, cfg.MaxPaginasFisicas)
			}
			if info.EnSwap == 0 {
				t.Error("ninguna página pasó al swap")
			}
			if info.Metricas.FallosPagina == 0 {
				t.Error("no se contaron fallos de página")
			}
			if volcado == nil || volcado.ArchivoDmp == "" {
				t.Errorf("volcado = %+v", volcado)
			}
		})
	}
}

func TestSbrkSobrePresupuestoTerminaElProceso(t *testing.T) {
	cfg := configPrueba(t)
	_, estado := correr(t, cfg, func(u *Usuario) {
		pid := u.Fork(func(u *Usuario) {
			u.Sbrk((cfg.MaxPaginasTotales + 1) * memoria.TamPagina)
			u.Exit(0)
		})
		if hijo, st := u.Wait(); hijo != pid || st != -1 {
			t.Errorf("Wait = (%d, %d), se esperaba (%d, -1)", hijo, st, pid)
		}

		// Sin paginado el presupuesto no aplica
		if r := u.Sbrk((cfg.MaxPaginasTotales + 1) * memoria.TamPagina); r < 0 {
			t.Errorf("Sbrk en un proceso sin paginado = %d", r)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}

func TestProcesosYProcdump(t *testing.T) {
	n, estado := correr(t, configPrueba(t), func(u *Usuario) {
		lista := u.n.Procesos()
		if len(lista) != 2 {
			t.Errorf("Procesos = %+v, se esperaban init y la prueba", lista)
		}
		for _, p := range lista {
			if p.Nombre != "init" || len(p.Hilos) != 1 {
				t.Errorf("proceso %+v", p)
			}
		}
		if dump := u.n.Procdump(); !strings.Contains(dump, "1 used init") {
			t.Errorf("Procdump = %q", dump)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
	if _, err := n.Volcar(12345); !errors.Is(err, ErrProcesoInexistente) {
		t.Errorf("Volcar de un pid inexistente = %v", err)
	}
}

func TestKillDesdeLaConsola(t *testing.T) {
	n, estado := correr(t, configPrueba(t), func(u *Usuario) {
		pid := u.Fork(func(u *Usuario) {
			for {
				u.Dormir(1)
			}
		})
		if err := u.n.Kill(pid, NSIG); err == nil {
			t.Error("Kill aceptó una señal fuera de rango")
		}
		if err := u.n.Kill(12345, SIGKILL); !errors.Is(err, ErrProcesoInexistente) {
			t.Errorf("Kill a un pid inexistente = %v", err)
		}
		// Deja pasar al menos un tick antes de matarlo
		u.Dormir(2)
		if err := u.n.Kill(pid, SIGKILL); err != nil {
			t.Errorf("Kill: %v", err)
		}
		if hijo, st := u.Wait(); hijo != pid || st != -1 {
			t.Errorf("Wait = (%d, %d)", hijo, st)
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
	if n.Ticks() == 0 {
		t.Error("el timer no avanzó")
	}
}

func TestEstres(t *testing.T) {
	cfg := configPrueba(t)
	cfg.CantidadCPUs = 4
	_, estado := correr(t, cfg, func(u *Usuario) {
		trabajo := func(u *Usuario) {
			s := u.BsemAlloc()
			var tids []int
			for i := 0; i < 2; i++ {
				tids = append(tids, u.CrearHilo(func(u *Usuario) {
					for j := 0; j < 20; j++ {
						u.BsemDown(s)
						u.Ciclo()
						u.BsemUp(s)
						u.Dormir(1)
					}
				}))
			}
			for _, tid := range tids {
				u.UnirHilo(tid)
			}
			u.BsemFree(s)
		}

		var pids []int
		for i := 0; i < 4; i++ {
			if pid := u.Fork(trabajo); pid > 0 {
				pids = append(pids, pid)
			}
		}
		u.Dormir(3)
		u.Kill(pids[0], SIGKILL)
		u.Kill(pids[2], SIGKILL)

		for range pids {
			if pid, _ := u.Wait(); pid < 0 {
				t.Error("faltaron hijos en wait")
			}
		}
	})
	if estado != 0 {
		t.Fatalf("estado de la prueba = %d", estado)
	}
}
