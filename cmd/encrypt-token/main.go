// Command encrypt-token seals an Admin API token for
// SHOPIFY_ADMIN_ACCESS_TOKEN_ENC. The token is read from stdin so it stays
// out of shell history.
//
//	TOKEN_ENC_KEY_B64=... encrypt-token < token.txt
//	encrypt-token -new-key
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"orderimages/internal/logging"
	"orderimages/internal/security"
)

func main() {
	newKey := flag.Bool("new-key", false, "print a fresh TOKEN_ENC_KEY_B64 and exit")
	flag.Parse()

	log := logging.FromEnv().WithFields(logging.F("service", "encrypt-token"))

	if *newKey {
		k, err := security.NewKey()
		if err != nil {
			log.Error("generate key failed", err)
			os.Exit(1)
		}
		fmt.Println(k)
		return
	}

	key, err := security.LoadKeyFromBase64(os.Getenv("TOKEN_ENC_KEY_B64"))
	if err != nil {
		log.Error("invalid TOKEN_ENC_KEY_B64", err)
		os.Exit(1)
	}

	token, err := bufio.NewReader(os.Stdin).ReadString('\n')
	token = strings.TrimSpace(token)
	if token == "" {
		log.Error("no token on stdin", err)
		os.Exit(2)
	}

	sealed, err := security.EncryptAESGCM(key, token)
	if err != nil {
		log.Error("encrypt failed", err)
		os.Exit(1)
	}
	fmt.Println(sealed)
}
