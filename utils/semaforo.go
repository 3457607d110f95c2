package utils

// Semaforo es un semáforo contador hecho con un canal con buffer.
// Cada Wait ocupa un lugar del buffer y cada Signal lo devuelve.
type Semaforo struct {
	c chan struct{}
}

// NewSemaforo crea un semáforo que admite hasta capacidad entradas simultáneas
func NewSemaforo(capacidad int) *Semaforo {
	if capacidad <= 0 {
		capacidad = 1
	}
	return &Semaforo{
		c: make(chan struct{}, capacidad),
	}
}

// Wait (P) ocupa un lugar, bloquea si no hay
func (s *Semaforo) Wait() {
	s.c <- struct{}{}
}

// Signal (V) libera un lugar
func (s *Semaforo) Signal() {
	select {
	case <-s.c:
	default:
		// Nadie ocupaba el semáforo, no hay nada que liberar
	}
}
