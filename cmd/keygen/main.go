// cmd/keygen/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"agent-wallet-service/internal/security"

	"go.uber.org/zap"
)

func main() {
	vaultDir := flag.String("vault-dir", "", "store the key in a file vault at this directory instead of printing it")
	flag.Parse()

	key, err := security.GenerateMasterKey()
	if err != nil {
		log.Fatal(err)
	}

	if *vaultDir != "" {
		provider, err := security.NewFileVaultProvider(*vaultDir, os.Getenv("FILE_VAULT_KEY"))
		if err != nil {
			log.Fatalf("failed to open file vault (is FILE_VAULT_KEY set?): %v", err)
		}
		vault := security.NewVault(provider, zap.NewNop())
		if err := vault.SetSecret(context.Background(), security.MasterKeyPath, key); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Master key written to %s. Start the server with VAULT_PROVIDER=file.\n", *vaultDir)
		return
	}

	fmt.Println("==============================================")
	fmt.Println("Generated AES-256 Master Key:")
	fmt.Println("==============================================")
	fmt.Println(key)
	fmt.Println("==============================================")
	fmt.Println("Add this to your .env file as:")
	fmt.Println("WALLET_MASTER_KEY=" + key)
	fmt.Println("==============================================")
	fmt.Println("Keep this key secret. Losing it makes every stored wallet unrecoverable.")
}
