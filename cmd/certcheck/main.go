// Command certcheck diagnostica un certificado A1 antes de cargarlo en una empresa:
// abre el PFX (o el par PEM) y muestra titular, emisor, validez y el CNPJ del titular.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/nfse-abrasf/internal/infrastructure/nfse/signer"
	"github.com/jhoicas/nfse-abrasf/pkg/abrasf"
)

func main() {
	pfxPath := flag.String("pfx", "", "ruta del archivo .pfx/.p12")
	password := flag.String("password", "", "senha del PFX")
	certPath := flag.String("cert", "", "certificado PEM (alternativa a -pfx)")
	keyPath := flag.String("key", "", "llave PEM (vacío = mismo archivo que -cert)")
	flag.Parse()

	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case *pfxPath != "":
		fmt.Printf("Lendo PFX: %s\n", *pfxPath)
		cert, err = signer.LoadFromPFXFile(*pfxPath, *password)
	case *certPath != "":
		fmt.Printf("Lendo PEM: %s\n", *certPath)
		cert, err = signer.LoadFromPEM(*certPath, *keyPath)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERRO: %v\n", err)
		os.Exit(1)
	}

	info, err := signer.Info(cert)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERRO: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	fmt.Printf("Titular:  %s\n", info.Titular)
	fmt.Printf("Emissor:  %s\n", info.Emissor)
	fmt.Printf("Serial:   %s\n", info.Serial)
	if cert.Leaf != nil {
		fmt.Printf("Válido de %s até %s\n", cert.Leaf.NotBefore.Format(time.DateTime), info.Validade.Format(time.DateTime))
	}
	if info.Validade.Before(now) {
		fmt.Println("Situação: VENCIDO")
	} else {
		fmt.Printf("Situação: válido (%d dias restantes)\n", int(info.Validade.Sub(now).Hours()/24))
	}
	if cnpj, ok := abrasf.CNPJFromTitular(info.Titular); ok {
		fmt.Printf("CNPJ:     %s\n", abrasf.FormatCNPJ(cnpj))
	} else {
		fmt.Println("CNPJ:     não encontrado no titular")
	}
	if info.Validade.Before(now) {
		os.Exit(1)
	}
}
