package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// kill le habla a la consola HTTP del kernel: manda señales, lista los
// procesos y pide volcados de memoria.
func main() {
	ip := flag.String("ip", "127.0.0.1", "IP del kernel")
	puerto := flag.Int("puerto", 8001, "puerto del kernel")
	nivel := flag.String("log", "WARN", "nivel de log")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Uso: %s [flags] <pid> <senal>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "     %s [flags] ps\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "     %s [flags] dump <pid>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	utils.InicializarLogger(*nivel, "kill")

	ctx, cancelar := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelar()

	cliente := utils.NewHTTPClient(*ip, *puerto, "kill")
	if err := cliente.VerificarConexion(ctx); err != nil {
		utils.ErrorLog.Error("Kernel no disponible", "error", err)
		os.Exit(1)
	}

	respuesta, err := ejecutar(ctx, cliente, flag.Args())
	if err != nil {
		utils.ErrorLog.Error("Pedido fallido", "error", err)
		flag.Usage()
		os.Exit(1)
	}

	salida := json.NewEncoder(os.Stdout)
	salida.SetIndent("", "  ")
	salida.Encode(respuesta)
	if respuesta["status"] != "OK" {
		os.Exit(1)
	}
}

func ejecutar(ctx context.Context, c *utils.HTTPClient, args []string) (map[string]interface{}, error) {
	switch {
	case len(args) == 1 && args[0] == "ps":
		return c.EnviarHTTPMensaje(ctx, utils.MensajeListarProcesos, "ps", nil)

	case len(args) == 2 && args[0] == "dump":
		pid, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("pid inválido %q: %w", args[1], err)
		}
		return c.EnviarHTTPMensaje(ctx, utils.MensajeMemoryDump, "dump", map[string]interface{}{"pid": pid})

	case len(args) == 2:
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("pid inválido %q: %w", args[0], err)
		}
		senal, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("señal inválida %q: %w", args[1], err)
		}
		return c.EnviarHTTPMensaje(ctx, utils.MensajeEnviarSenal, "kill", map[string]interface{}{"pid": pid, "senal": senal})
	}
	return nil, fmt.Errorf("argumentos inválidos: %v", args)
}
