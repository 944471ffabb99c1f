// Package main - точка входа LearnHub: REST API учебной платформы
// с прогрессом по урокам, опытом и доступом к платным курсам.
//
// Команды:
//   - serve   - HTTP API
//   - migrate - миграции схемы (postgres; sqlite мигрирует при открытии)
//   - seed    - демонстрационный каталог и пользователь
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}
