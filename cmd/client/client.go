package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/FabioSeixas/exchange/internal/common"
	exchangenet "github.com/FabioSeixas/exchange/internal/net"
)

// reportFixedHeaderLen matches the server's report layout:
// 1+1+8+8+8+8+8+2+4+36 = 84 bytes.
const reportFixedHeaderLen = 84

func main() {
	// CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	owner := flag.String("owner", "", "Owner username (compulsory)")
	action := flag.String("action", "place", "Action to perform: ['place', 'book']")

	// Order Parameters
	sideStr := flag.String("side", "bid", "Order side: 'bid' or 'ask'")
	price := flag.Uint64("price", 100, "Limit price in ticks")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s as '%s'\n", *serverAddr, *owner)

	// Start Listening for Reports (Async)
	go readReports(conn)

	side := common.Bid
	if strings.ToLower(*sideStr) == "ask" || strings.ToLower(*sideStr) == "sell" {
		side = common.Ask
	}

	switch strings.ToLower(*action) {
	case "place":
		quantities := parseQuantities(*qtyStr)
		for _, q := range quantities {
			if err := sendPlaceOrder(conn, *owner, side, *price, q); err != nil {
				log.Printf("Failed to place order (Qty: %d): %v", q, err)
			} else {
				fmt.Printf("-> Sent %s Order: %d @ %d\n", strings.ToUpper(side.String()), q, *price)
			}
			// Small optional sleep to ensure server processes sequence distinctly if needed
			time.Sleep(5 * time.Millisecond)
		}

	case "book":
		if err := sendBookQuery(conn); err != nil {
			log.Printf("Failed to send book query: %v", err)
		} else {
			fmt.Println("-> Sent Book Query")
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	// Keep the client alive to receive execution reports
	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

// parseQuantities splits a comma-separated string into a slice of uint64
func parseQuantities(input string) []uint64 {
	parts := strings.Split(input, ",")
	var result []uint64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("Warning: Invalid quantity '%s', skipping.", p)
		}
	}
	return result
}

// sendPlaceOrder constructs and sends the NewOrder message
func sendPlaceOrder(conn net.Conn, owner string, side common.Side, price, qty uint64) error {
	usernameLen := len(owner)
	totalLen := exchangenet.BaseMessageHeaderLen + exchangenet.NewOrderMessageHeaderLen + usernameLen

	buf := make([]byte, totalLen)

	// Header (TypeOf = NewOrder)
	binary.BigEndian.PutUint16(buf[0:2], uint16(exchangenet.NewOrder))

	// Body
	buf[2] = byte(side)
	binary.BigEndian.PutUint64(buf[3:11], price)
	binary.BigEndian.PutUint64(buf[11:19], qty)
	buf[19] = uint8(usernameLen)
	copy(buf[20:], owner)

	_, err := conn.Write(buf)
	return err
}

func sendBookQuery(conn net.Conn) error {
	buf := make([]byte, exchangenet.BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(exchangenet.BookQuery))
	_, err := conn.Write(buf)
	return err
}

// readReports continuously reads and parses Report messages from the server
func readReports(conn net.Conn) {
	for {
		// Read Fixed Header
		headerBuf := make([]byte, reportFixedHeaderLen)
		_, err := io.ReadFull(conn, headerBuf)
		if err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			os.Exit(0)
		}

		// Parse Fixed Fields
		msgType := exchangenet.ReportMessageType(headerBuf[0])
		side := common.Side(headerBuf[1])

		qty := binary.BigEndian.Uint64(headerBuf[10:18])
		price := binary.BigEndian.Uint64(headerBuf[18:26])
		bestBid := binary.BigEndian.Uint64(headerBuf[26:34])
		bestAsk := binary.BigEndian.Uint64(headerBuf[34:42])
		counterpartyLen := binary.BigEndian.Uint16(headerBuf[42:44])
		errStrLen := binary.BigEndian.Uint32(headerBuf[44:48])
		uuid := strings.TrimRight(string(headerBuf[48:84]), "\x00")

		// Read Variable Length Strings (Error and Counterparty)
		totalVarLen := int(counterpartyLen) + int(errStrLen)
		varBuf := make([]byte, totalVarLen)
		if totalVarLen > 0 {
			if _, err := io.ReadFull(conn, varBuf); err != nil {
				log.Printf("Error reading report body: %v", err)
				break
			}
		}

		errStr := ""
		counterparty := ""
		if errStrLen > 0 {
			errStr = string(varBuf[:errStrLen])
		}
		if counterpartyLen > 0 {
			counterparty = string(varBuf[errStrLen:])
		}

		switch msgType {
		case exchangenet.ErrorReport:
			fmt.Printf("\n[SERVER ERROR] %s\n", errStr)
		case exchangenet.BookReport:
			fmt.Printf("\n[BOOK] Best Bid: %d | Best Ask: %d | Bid Levels: %d | Ask Levels: %d\n",
				bestBid, bestAsk, qty>>32, qty&0xffffffff)
		default:
			fmt.Printf("\n[EXECUTION] Match: %s | Qty: %d | Price: %d | vs: %s | UUID: %s\n",
				strings.ToUpper(side.String()), qty, price, counterparty, uuid)
		}
	}
}
