package utils

import (
	"fmt"
	"log/slog"
	"time"
)

// AplicarRetardo aplica un retardo simulado y lo registra
func AplicarRetardo(operacion string, duracionMs int) {
	if duracionMs <= 0 {
		return
	}
	slog.Debug("Aplicando retardo", "operación", operacion, "duración_ms", duracionMs)
	time.Sleep(time.Duration(duracionMs) * time.Millisecond)
}

// ExtraerEntero extrae un campo numérico de los datos del mensaje.
// JSON decodifica los números como float64.
func ExtraerEntero(msg *Mensaje, campo string) (int, error) {
	datosMap, ok := msg.Datos.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("datos del mensaje con formato incorrecto")
	}
	switch v := datosMap[campo].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("campo %q no proporcionado o formato incorrecto", campo)
	}
}

// ExtraerRetardo extrae el retardo de una operación del mensaje
func ExtraerRetardo(msg *Mensaje, valorPorDefecto int) int {
	if retardo, err := ExtraerEntero(msg, "retardo"); err == nil {
		return retardo
	}
	return valorPorDefecto
}

// HandlerGenerico es un handler genérico para tratar operaciones con retardo
func HandlerGenerico(msg *Mensaje, retardoPorDefecto int, procesador func(msg *Mensaje) (interface{}, error)) (interface{}, error) {
	slog.Info("Operación recibida", "origen", msg.Origen, "tipo", msg.Tipo, "operacion", msg.Operacion)

	AplicarRetardo("procesamiento", ExtraerRetardo(msg, retardoPorDefecto))

	return procesador(msg)
}
