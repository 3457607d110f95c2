package main

import (
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/nucleo"
)

// Programas de usuario que trae el kernel. init crea el shell y se queda
// recogiendo huérfanos; el shell corre las cargas de prueba una por una.

const senalUsuario = 5

func programaInit(cfg nucleo.Config) nucleo.Programa {
	return func(u *nucleo.Usuario) {
		if u.Fork(programaShell(cfg)) < 0 {
			u.Exit(1)
		}
		for {
			if pid, _ := u.Wait(); pid < 0 {
				u.Dormir(10)
			}
		}
	}
}

func programaShell(cfg nucleo.Config) nucleo.Programa {
	cargas := []struct {
		nombre string
		prog   nucleo.Programa
	}{
		{"memoria", cargaMemoria(cfg.MaxPaginasTotales - 4)},
		{"hilos", cargaHilos(4, 50)},
		{"senales", cargaSenales},
	}
	return func(u *nucleo.Usuario) {
		for _, c := range cargas {
			if u.Fork(c.prog) < 0 {
				continue
			}
			u.Wait()
		}
		for {
			u.Dormir(100)
		}
	}
}

// cargaMemoria crece paginas páginas, escribe un patrón en cada una y lo
// vuelve a leer. Si el proceso se pagina, buena parte pasa por el swap.
func cargaMemoria(paginas int) nucleo.Programa {
	return func(u *nucleo.Usuario) {
		if paginas <= 0 {
			return
		}
		base := u.Sbrk(paginas * memoria.TamPagina)
		if base < 0 {
			u.Exit(1)
		}
		for i := 0; i < paginas; i++ {
			u.EscribirEntero(uint64(base)+uint64(i*memoria.TamPagina), u.Pid()*1000+i)
		}
		for i := 0; i < paginas; i++ {
			if u.LeerEntero(uint64(base)+uint64(i*memoria.TamPagina)) != u.Pid()*1000+i {
				u.Exit(2)
			}
		}
	}
}

// cargaHilos reparte vueltas incrementos de un contador compartido entre
// hilos, con un semáforo contador haciendo de mutex
func cargaHilos(hilos, vueltas int) nucleo.Programa {
	return func(u *nucleo.Usuario) {
		dir := u.Sbrk(8)
		if dir < 0 {
			u.Exit(1)
		}
		contador := uint64(dir)
		u.EscribirEntero(contador, 0)

		mutex := u.NuevoSemaforoContador(1)
		if mutex == nil {
			u.Exit(1)
		}

		var tids []int
		for i := 0; i < hilos; i++ {
			tid := u.CrearHilo(func(u *nucleo.Usuario) {
				for j := 0; j < vueltas; j++ {
					mutex.Bajar(u)
					v := u.LeerEntero(contador)
					u.Ciclo()
					u.EscribirEntero(contador, v+1)
					mutex.Subir(u)
				}
			})
			if tid > 0 {
				tids = append(tids, tid)
			}
		}
		for _, tid := range tids {
			u.UnirHilo(tid)
		}
		mutex.Liberar(u)
		if u.LeerEntero(contador) != len(tids)*vueltas {
			u.Exit(2)
		}
	}
}

// cargaSenales prueba un manejador de usuario y después para, reanuda y
// mata a un hijo
func cargaSenales(u *nucleo.Usuario) {
	bandera := u.Sbrk(8)
	if bandera < 0 {
		u.Exit(1)
	}
	manejador := u.RegistrarManejador(func(u *nucleo.Usuario, senal int) {
		u.EscribirEntero(uint64(bandera), senal)
	})
	if u.Sigaction(senalUsuario, &nucleo.Accion{Manejador: manejador}, nil) < 0 {
		u.Exit(1)
	}
	u.Kill(u.Pid(), senalUsuario)
	if u.LeerEntero(uint64(bandera)) != senalUsuario {
		u.Exit(2)
	}

	hijo := u.Fork(func(u *nucleo.Usuario) {
		for {
			u.Dormir(1)
		}
	})
	if hijo < 0 {
		u.Exit(1)
	}
	u.Kill(hijo, nucleo.SIGSTOP)
	u.Dormir(5)
	u.Kill(hijo, nucleo.SIGCONT)
	u.Dormir(5)
	u.Kill(hijo, nucleo.SIGKILL)
	u.Wait()
}
