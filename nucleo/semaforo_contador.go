package nucleo

// SemaforoContador es un semáforo contador de la biblioteca de usuario,
// armado con dos semáforos binarios: uno protege el valor y el otro
// bloquea a los que bajan cuando el valor llega a cero. El estado vive en
// memoria de usuario, así que lo comparten los hilos del proceso.
type SemaforoContador struct {
	dir uint64
}

const (
	despValor   = 0
	despMutex   = 4
	despEsperan = 8
	tamSemaforo = 16
)

// NuevoSemaforoContador crea un semáforo con valor inicial. Devuelve nil
// si no hay memoria o semáforos binarios libres.
func (u *Usuario) NuevoSemaforoContador(inicial int) *SemaforoContador {
	dir := u.Sbrk(tamSemaforo)
	if dir < 0 {
		return nil
	}
	mutex := u.BsemAlloc()
	esperan := u.BsemAlloc()
	if mutex < 0 || esperan < 0 {
		u.BsemFree(mutex)
		u.BsemFree(esperan)
		return nil
	}

	s := &SemaforoContador{dir: uint64(dir)}
	u.EscribirEntero(s.dir+despValor, inicial)
	u.EscribirEntero(s.dir+despMutex, mutex)
	u.EscribirEntero(s.dir+despEsperan, esperan)
	if inicial == 0 {
		u.BsemDown(esperan)
	}
	return s
}

// Bajar decrementa el semáforo, esperando mientras valga cero
func (s *SemaforoContador) Bajar(u *Usuario) {
	mutex := u.LeerEntero(s.dir + despMutex)
	esperan := u.LeerEntero(s.dir + despEsperan)

	u.BsemDown(esperan)
	u.BsemDown(mutex)
	valor := u.LeerEntero(s.dir+despValor) - 1
	u.EscribirEntero(s.dir+despValor, valor)
	if valor > 0 {
		u.BsemUp(esperan)
	}
	u.BsemUp(mutex)
}

// Subir incrementa el semáforo
func (s *SemaforoContador) Subir(u *Usuario) {
	mutex := u.LeerEntero(s.dir + despMutex)
	esperan := u.LeerEntero(s.dir + despEsperan)

	u.BsemDown(mutex)
	valor := u.LeerEntero(s.dir+despValor) + 1
	u.EscribirEntero(s.dir+despValor, valor)
	if valor == 1 {
		u.BsemUp(esperan)
	}
	u.BsemUp(mutex)
}

// Valor devuelve el valor actual
func (s *SemaforoContador) Valor(u *Usuario) int {
	return u.LeerEntero(s.dir + despValor)
}

// Liberar devuelve los semáforos binarios al pool
func (s *SemaforoContador) Liberar(u *Usuario) {
	u.BsemFree(u.LeerEntero(s.dir + despMutex))
	u.BsemFree(u.LeerEntero(s.dir + despEsperan))
}
