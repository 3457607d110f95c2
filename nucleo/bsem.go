package nucleo

type estadoBsem int

const (
	bsemDesasignado estadoBsem = iota
	bsemLibre
	bsemTomado
)

func (n *Nucleo) bsemValido(i int) bool {
	return i >= 0 && i < len(n.bsems)
}

// bsemAlloc reserva un semáforo binario libre y devuelve su índice, o -1
func (n *Nucleo) bsemAlloc(h *Hilo) int {
	n.semLock.Adquirir(h.cpu)
	defer n.semLock.Liberar(h.cpu)
	for i := range n.bsems {
		if n.bsems[i] == bsemDesasignado {
			n.bsems[i] = bsemLibre
			return i
		}
	}
	return -1
}

// bsemFree devuelve el semáforo al pool. Los que esperaban en él vuelven con -1.
func (n *Nucleo) bsemFree(h *Hilo, i int) int {
	if !n.bsemValido(i) {
		return -1
	}
	n.semLock.Adquirir(h.cpu)
	if n.bsems[i] == bsemDesasignado {
		n.semLock.Liberar(h.cpu)
		return -1
	}
	n.bsems[i] = bsemDesasignado
	n.semLock.Liberar(h.cpu)

	n.wakeup(h, &n.bsems[i])
	return 0
}

// bsemDown toma el semáforo, durmiendo mientras esté tomado
func (n *Nucleo) bsemDown(h *Hilo, i int) int {
	if !n.bsemValido(i) {
		return -1
	}
	n.semLock.Adquirir(h.cpu)
	for n.bsems[i] == bsemTomado {
		if n.matado(h) {
			n.semLock.Liberar(h.cpu)
			return -1
		}
		n.sleep(h, &n.bsems[i], &n.semLock)
	}
	if n.bsems[i] == bsemDesasignado {
		n.semLock.Liberar(h.cpu)
		return -1
	}
	n.bsems[i] = bsemTomado
	n.semLock.Liberar(h.cpu)
	return 0
}

// bsemUp suelta el semáforo. Lo puede soltar cualquier hilo.
func (n *Nucleo) bsemUp(h *Hilo, i int) int {
	if !n.bsemValido(i) {
		return -1
	}
	n.semLock.Adquirir(h.cpu)
	if n.bsems[i] == bsemDesasignado {
		n.semLock.Liberar(h.cpu)
		return -1
	}
	n.bsems[i] = bsemLibre
	n.semLock.Liberar(h.cpu)

	n.wakeup(h, &n.bsems[i])
	return 0
}
