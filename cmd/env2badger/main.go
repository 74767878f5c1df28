// env2badger imports wallet secrets from a .env file into the encrypted
// Badger store read by cmd/unwind.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/betbot/utpunwind/pkg/secretstore"
)

// walletKeys are the only variables worth keeping encrypted.
var walletKeys = map[string]bool{
	"WALLET_KEY":        true,
	"WALLET_MNEMONIC":   true,
	"WALLET_PASSPHRASE": true,
}

func main() {
	var (
		inPath    = flag.String("in", ".env", "input .env file path")
		dbPath    = flag.String("badger", getenv("WALLET_SECRET_DB", "data/secrets.badger"), "badger secrets db path")
		secretKey = flag.String("secret-key", getenv("WALLET_SECRET_KEY", ""), "badger encryption key (32 bytes base64/hex)")
		prefix    = flag.String("prefix", "wallet/", "key prefix inside badger")
		all       = flag.Bool("all", false, "import every variable, not only wallet secrets")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(errors.New("secret key is required: set WALLET_SECRET_KEY or pass -secret-key"))
	}

	kv, err := godotenv.Read(*inPath)
	if err != nil {
		fatal(err)
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	names := make([]string, 0, len(kv))
	for k := range kv {
		if *all || walletKeys[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	for _, k := range names {
		if err := ss.SetString((*prefix)+k, kv[k]); err != nil {
			fatal(err)
		}
		fmt.Fprintf(os.Stderr, "  %s%s\n", *prefix, k)
	}

	fmt.Fprintf(os.Stderr, "已导入 %d 项到 badger：%s（前缀 %s）\n", len(names), *dbPath, *prefix)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
