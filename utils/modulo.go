package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Modulo representa un módulo del sistema que atiende mensajes por HTTP
type Modulo struct {
	Nombre      string
	Server      *HTTPServer
	ConfigPath  string
	HandlerFunc map[string]map[string]HTTPHandlerFunc
}

// NuevoModulo crea una nueva instancia de un módulo
func NuevoModulo(nombre string, configPath string) *Modulo {
	return &Modulo{
		Nombre:      nombre,
		ConfigPath:  configPath,
		HandlerFunc: make(map[string]map[string]HTTPHandlerFunc),
	}
}

// RegistrarHandler registra un handler para un tipo de mensaje y operación específicos
func (m *Modulo) RegistrarHandler(tipo string, operacion string, handler HTTPHandlerFunc) {
	if _, existe := m.HandlerFunc[tipo]; !existe {
		m.HandlerFunc[tipo] = make(map[string]HTTPHandlerFunc)
	}
	m.HandlerFunc[tipo][operacion] = handler
}

// IniciarServidor crea e inicia el servidor HTTP del módulo en segundo plano.
// Los errores del servidor se informan por el canal devuelto.
func (m *Modulo) IniciarServidor(ip string, puerto int) <-chan error {
	m.armarServidor(ip, puerto)

	errores := make(chan error, 1)
	go func() {
		errores <- m.Server.Start()
	}()

	slog.Info("Servidor HTTP iniciado", "módulo", m.Nombre, "dirección", fmt.Sprintf("%s:%d", ip, puerto))
	return errores
}

// armarServidor crea el servidor con un handler por tipo de mensaje que
// despacha según la operación
func (m *Modulo) armarServidor(ip string, puerto int) {
	m.Server = NewHTTPServer(ip, puerto, m.Nombre)

	for tipoStr, handlersPorOperacion := range m.HandlerFunc {
		handlersPorOperacion := handlersPorOperacion
		tipo, err := strconv.Atoi(tipoStr)
		if err != nil {
			slog.Error("Error al convertir tipo de mensaje a entero", "tipo", tipoStr, "error", err)
			continue
		}

		m.Server.RegisterHTTPHandler(tipo, func(msg *Mensaje) (interface{}, error) {
			operacion := msg.Operacion
			if operacion == "" {
				operacion = "default"
			}

			handler, existe := handlersPorOperacion[operacion]
			if !existe {
				handler, existe = handlersPorOperacion["default"]
				if !existe {
					slog.Error("No hay handler para operación", "tipo", tipo, "operacion", operacion)
					return nil, fmt.Errorf("no hay handler para operación %s", operacion)
				}
			}

			return handler(msg)
		})
	}
}

// DetenerServidor apaga el servidor HTTP del módulo si está corriendo
func (m *Modulo) DetenerServidor(ctx context.Context) error {
	if m.Server == nil {
		return nil
	}
	return m.Server.Shutdown(ctx)
}

// CargarConfiguracion decodifica el archivo JSON de configuración en T
func CargarConfiguracion[T any](ruta string) (*T, error) {
	slog.Info("Cargando configuración", "ruta", ruta)

	absPath, err := filepath.Abs(ruta)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo ruta absoluta de %s: %w", ruta, err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("error abriendo archivo de configuración %s: %w", absPath, err)
	}
	defer file.Close()

	var config T
	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("error decodificando configuración %s: %w", absPath, err)
	}

	slog.Info("Configuración cargada correctamente", "archivo", absPath)
	return &config, nil
}

// ============================================================================
// Constantes para tipos de mensajes de la consola del kernel
// ============================================================================
const (
	// === COMUNICACIÓN BÁSICA (1-9) ===
	MensajeHandshake = 1 // Conexión inicial

	// === SEÑALES (40-49) ===
	MensajeEnviarSenal = 40 // kill(pid, señal)

	// === DIAGNÓSTICO (50-59) ===
	MensajeListarProcesos = 50 // procdump
	MensajeMemoryDump     = 51 // Volcado de memoria de un proceso
)
