// Package testvcalc предоставляет тестовое окружение для интеграционных тестов vcalc.
//
// Пакет позволяет в одну строку поднять сервер vcalc программно:
// случайный порт, временный файл учётных записей, по желанию TLS
// и NATS контейнер через testcontainers.
//
// Использование в тестах:
//
//	func TestIntegration(t *testing.T) {
//	    ctx := context.Background()
//
//	    env, err := testvcalc.Start(ctx)
//	    require.NoError(t, err)
//	    defer env.Close(ctx)
//
//	    c, err := env.NewClient("alice")
//	    require.NoError(t, err)
//	    defer c.Close()
//
//	    products, err := c.Compute([][]int16{{2, 3, 4}})
//	}
//
// Использование в другом проекте:
//
//	// go.mod
//	require github.com/udisondev/vcalc v0.x.x
//
//	// myproject/integration_test.go
//	import "github.com/udisondev/vcalc/pkg/testvcalc"
package testvcalc
