package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"
	"whirl/domain"
	"whirl/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	channel := flag.String("channel", "", "Channel to show, every channel when empty")
	limit := flag.Int("limit", domain.DefaultHistoryLimit, "Most recent records to show for -channel")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	history := repositories.NewHistoryRepository(db, slog.New(slog.DiscardHandler))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Channel", "Type", "User", "Message"})
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

	if *channel != "" {
		records, err := history.Recent(domain.NormalizeChannel(*channel), *limit)
		if err != nil {
			log.Fatal(err)
		}
		for _, record := range records {
			table.Append(row(record))
		}
	} else {
		err = history.Each(func(_ string, record domain.HistoryRecord) error {
			table.Append(row(record))
			return nil
		})
		if err != nil {
			log.Fatal(err)
		}
	}

	table.Render()
}

func row(record domain.HistoryRecord) []string {
	message := record.Message
	if runes := []rune(message); len(runes) > 60 {
		message = string(runes[:57]) + "..."
	}
	return []string{
		record.CreatedAt.Local().Format(time.DateTime),
		record.Channel,
		record.Type.String(),
		record.User,
		message,
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Log truncate required") {
			return nil, fmt.Errorf("%w: stop the server so it can truncate its value log", err)
		}
		return nil, err
	}
	return db, nil
}
