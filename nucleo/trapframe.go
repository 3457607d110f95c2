package nucleo

import "encoding/binary"

// Trapframe son los registros de usuario de un hilo, guardados al entrar
// al kernel y restaurados al volver a modo usuario
type Trapframe struct {
	KernelSatp   uint64
	KernelSp     uint64
	KernelTrap   uint64
	Epc          uint64
	KernelHartid uint64
	Ra           uint64
	Sp           uint64
	Gp           uint64
	Tp           uint64
	T0           uint64
	T1           uint64
	T2           uint64
	S0           uint64
	S1           uint64
	A0           uint64
	A1           uint64
	A2           uint64
	A3           uint64
	A4           uint64
	A5           uint64
	A6           uint64
	A7           uint64
	S2           uint64
	S3           uint64
	S4           uint64
	S5           uint64
	S6           uint64
	S7           uint64
	S8           uint64
	S9           uint64
	S10          uint64
	S11          uint64
	T3           uint64
	T4           uint64
	T5           uint64
	T6           uint64
}

const tamTrapframe = 36 * 8

// palabras devuelve punteros a los campos en el orden en que se guardan en memoria
func (tf *Trapframe) palabras() [36]*uint64 {
	return [36]*uint64{
		&tf.KernelSatp, &tf.KernelSp, &tf.KernelTrap, &tf.Epc, &tf.KernelHartid,
		&tf.Ra, &tf.Sp, &tf.Gp, &tf.Tp, &tf.T0, &tf.T1, &tf.T2, &tf.S0, &tf.S1,
		&tf.A0, &tf.A1, &tf.A2, &tf.A3, &tf.A4, &tf.A5, &tf.A6, &tf.A7,
		&tf.S2, &tf.S3, &tf.S4, &tf.S5, &tf.S6, &tf.S7, &tf.S8, &tf.S9, &tf.S10, &tf.S11,
		&tf.T3, &tf.T4, &tf.T5, &tf.T6,
	}
}

// Codificar escribe el trapframe en b (al menos 288 bytes) en little endian
func (tf *Trapframe) Codificar(b []byte) {
	for i, p := range tf.palabras() {
		binary.LittleEndian.PutUint64(b[i*8:], *p)
	}
}

// Decodificar lee el trapframe desde b
func (tf *Trapframe) Decodificar(b []byte) {
	for i, p := range tf.palabras() {
		*p = binary.LittleEndian.Uint64(b[i*8:])
	}
}

// Argumento devuelve el registro a<n>
func (tf *Trapframe) Argumento(n int) uint64 {
	switch n {
	case 0:
		return tf.A0
	case 1:
		return tf.A1
	case 2:
		return tf.A2
	case 3:
		return tf.A3
	case 4:
		return tf.A4
	case 5:
		return tf.A5
	}
	panic("argumento")
}

// fijarArgumentos carga a0..a5 con args
func (tf *Trapframe) fijarArgumentos(args ...uint64) {
	regs := [...]*uint64{&tf.A0, &tf.A1, &tf.A2, &tf.A3, &tf.A4, &tf.A5}
	for i := range regs {
		*regs[i] = 0
		if i < len(args) {
			*regs[i] = args[i]
		}
	}
}
