package nucleo

// Valores por defecto de las tablas del kernel
const (
	NPROC           = 64   // máximo de procesos
	NTHREAD         = 8    // máximo de hilos por proceso
	NCPU            = 4    // cantidad de CPUs
	MAX_PSYC_PAGES  = 16   // máximo de páginas de un proceso en RAM
	MAX_TOTAL_PAGES = 32   // máximo de páginas de un proceso entre RAM y swap
	MAX_BSEM        = 128  // semáforos binarios del sistema
	MAX_STACK_SIZE  = 4000 // pila de usuario de cada hilo creado con kthread_create
	NMARCOS         = 2048 // marcos de la RAM simulada (8 MiB)
)

// Números de llamadas al sistema
const (
	SYS_fork           = 1
	SYS_exit           = 2
	SYS_wait           = 3
	SYS_kill           = 6
	SYS_getpid         = 11
	SYS_sbrk           = 12
	SYS_sleep          = 13
	SYS_uptime         = 14
	SYS_sigprocmask    = 22
	SYS_sigaction      = 23
	SYS_sigret         = 24
	SYS_kthread_create = 25
	SYS_kthread_id     = 26
	SYS_kthread_exit   = 27
	SYS_kthread_join   = 28
	SYS_bsem_alloc     = 29
	SYS_bsem_free      = 30
	SYS_bsem_down      = 31
	SYS_bsem_up        = 32
)

// Señales
const (
	NSIG = 32

	SIG_DFL = 0 // acción por defecto
	SIG_IGN = 1 // ignorar

	SIGKILL = 9
	SIGSTOP = 17
	SIGCONT = 19
)

// Las señales que no se pueden bloquear, ignorar ni redefinir
const senalesIntocables uint32 = 1<<SIGKILL | 1<<SIGSTOP

// Páginas con las que arranca init: texto y pila
const paginasIniciales = 2
