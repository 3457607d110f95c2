package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/nucleo"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// ServidorConsola expone por HTTP las operaciones de consola del kernel
type ServidorConsola struct {
	cfg    nucleo.Config
	n      *nucleo.Nucleo
	modulo *utils.Modulo
}

func nuevoServidorConsola(cfg nucleo.Config, n *nucleo.Nucleo) *ServidorConsola {
	s := &ServidorConsola{
		cfg:    cfg,
		n:      n,
		modulo: utils.NuevoModulo("Kernel", ""),
	}
	s.registrarHandlers()
	return s
}

func (s *ServidorConsola) registrarHandlers() {
	s.modulo.RegistrarHandler(fmt.Sprintf("%d", utils.MensajeHandshake), "default", s.handlerHandshake)
	s.modulo.RegistrarHandler(fmt.Sprintf("%d", utils.MensajeEnviarSenal), "default", s.handlerKill)
	s.modulo.RegistrarHandler(fmt.Sprintf("%d", utils.MensajeListarProcesos), "default", s.handlerProcesos)
	s.modulo.RegistrarHandler(fmt.Sprintf("%d", utils.MensajeMemoryDump), "default", s.handlerVolcado)

	utils.InfoLog.Info("Handlers registrados correctamente")
}

// Atender corre el servidor hasta que se cancele ctx
func (s *ServidorConsola) Atender(ctx context.Context) error {
	errores := s.modulo.IniciarServidor(s.cfg.IPKernel, s.cfg.PuertoKernel)
	select {
	case err := <-errores:
		return err
	case <-ctx.Done():
	}

	apagado, cancelar := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelar()
	if err := s.modulo.DetenerServidor(apagado); err != nil {
		return err
	}
	return <-errores
}

func (s *ServidorConsola) handlerHandshake(msg *utils.Mensaje) (interface{}, error) {
	utils.InfoLog.Info("Handshake recibido", "origen", msg.Origen)
	return map[string]interface{}{"status": "OK", "message": "Handshake recibido"}, nil
}

func (s *ServidorConsola) handlerKill(msg *utils.Mensaje) (interface{}, error) {
	pid, err := utils.ExtraerEntero(msg, "pid")
	if err != nil {
		return nil, err
	}
	senal, err := utils.ExtraerEntero(msg, "senal")
	if err != nil {
		return nil, err
	}

	utils.InfoLog.Info("Señal pedida por consola", "origen", msg.Origen, "pid", pid, "senal", senal)
	if err := s.n.Kill(pid, senal); err != nil {
		return map[string]interface{}{"status": "ERROR", "message": err.Error()}, nil
	}
	return map[string]interface{}{"status": "OK", "pid": pid, "senal": senal}, nil
}

func (s *ServidorConsola) handlerProcesos(msg *utils.Mensaje) (interface{}, error) {
	return map[string]interface{}{"status": "OK", "procesos": s.n.Procesos(), "ticks": s.n.Ticks()}, nil
}

// handlerVolcado escribe en disco, así que paga el mismo retardo que el swap
func (s *ServidorConsola) handlerVolcado(msg *utils.Mensaje) (interface{}, error) {
	return utils.HandlerGenerico(msg, s.cfg.RetardoSwap, func(msg *utils.Mensaje) (interface{}, error) {
		pid, err := utils.ExtraerEntero(msg, "pid")
		if err != nil {
			return nil, err
		}
		v, err := s.n.Volcar(pid)
		if err != nil {
			return map[string]interface{}{"status": "ERROR", "message": err.Error()}, nil
		}
		return map[string]interface{}{"status": "OK", "volcado": v}, nil
	})
}
