package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// inspect dumps the stored records of a running or stopped engine in a
// readable table. Open is read-only with the lock guard bypassed so it
// works next to a live process.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "", "Key prefix to scan (conv:, msg:, presence: or empty for all)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(
		fmt.Sprintf("  ====== amora store %s ======", *dbPath)))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(v []byte) error {
				rowType, timestamp, detail := describe(key, v)
				table.Append([]string{key, rowType, timestamp, detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe classifies one record by its key prefix and extracts the
// human-relevant fields from its JSON value.
func describe(key string, value []byte) (rowType, timestamp, detail string) {
	switch {
	case strings.HasPrefix(key, "conv:pair:"):
		// Pair index rows hold the conversation id as a raw value.
		return "PAIR", "", string(value)
	case strings.HasPrefix(key, "conv:id:"):
		var record struct {
			MemberA     string `json:"member_a"`
			MemberB     string `json:"member_b"`
			LastMessage *struct {
				Body string `json:"body"`
			} `json:"last_message"`
			UpdatedAt time.Time `json:"updated_at"`
		}
		if err := json.Unmarshal(value, &record); err != nil {
			return "CONV", "", fmt.Sprintf("unreadable: %v", err)
		}
		detail = fmt.Sprintf("%s | %s", record.MemberA, record.MemberB)
		if record.LastMessage != nil {
			detail += " last=" + truncate(record.LastMessage.Body, 32)
		}
		return "CONV", record.UpdatedAt.Format("15:04:05"), detail
	case strings.HasPrefix(key, "msg:"):
		var record struct {
			SenderID  string    `json:"sender_id"`
			Body      string    `json:"body"`
			SeenBy    []string  `json:"seen_by"`
			CreatedAt time.Time `json:"created_at"`
		}
		if err := json.Unmarshal(value, &record); err != nil {
			return "MSG", "", fmt.Sprintf("unreadable: %v", err)
		}
		detail = fmt.Sprintf("%s: %s (seen by %d)",
			record.SenderID, truncate(record.Body, 48), len(record.SeenBy))
		return "MSG", record.CreatedAt.Format("15:04:05"), detail
	case strings.HasPrefix(key, "presence:"):
		var record struct {
			IsOnline   bool      `json:"is_online"`
			TypingIn   *string   `json:"typing_in"`
			LastSeenAt time.Time `json:"last_seen_at"`
		}
		if err := json.Unmarshal(value, &record); err != nil {
			return "PRES", "", fmt.Sprintf("unreadable: %v", err)
		}
		detail = "offline"
		if record.IsOnline {
			detail = "online"
		}
		if record.TypingIn != nil {
			detail += " typing in " + *record.TypingIn
		}
		return "PRES", record.LastSeenAt.Format("15:04:05"), detail
	default:
		return "RAW", "", truncate(string(value), 64)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	return badger.Open(opts)
}
