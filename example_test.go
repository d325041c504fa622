package maxlines_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobeaver/maxlines"
	"github.com/gobeaver/maxlines/driver/memory"
)

func ExampleFinder_FindMaxFileInDirectory() {
	ctx := context.Background()

	fs := memory.New() // Using memory for example; use local.New() in production
	_ = fs.Write(ctx, "notes/todo.txt", strings.NewReader("milk\neggs\n"))
	_ = fs.Write(ctx, "notes/ideas.txt", strings.NewReader("one\n\ntwo\nthree\n"))

	finder := maxlines.NewFinder(fs)
	winner, found, err := finder.FindMaxFileInDirectory(ctx, "notes")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println(winner, found)
	// Output:
	// notes/ideas.txt true
}

func ExampleFinder_FindMaxFile() {
	ctx := context.Background()

	fs := memory.New()
	_ = fs.Write(ctx, "a.txt", strings.NewReader("1\n2"))
	_ = fs.Write(ctx, "b.txt", strings.NewReader("1\n2\n"))

	// Ties go to the earliest path
	winner, _, _ := maxlines.NewFinder(fs).FindMaxFile(ctx, []string{"b.txt", "a.txt"})
	fmt.Println(winner)
	// Output:
	// b.txt
}

func ExampleFinder_Analyze() {
	ctx := context.Background()

	fs := memory.New()
	_ = fs.Write(ctx, "logs/a.log", strings.NewReader("x\ny\nz"))
	_ = fs.Write(ctx, "logs/b.log", strings.NewReader(""))

	finder := maxlines.NewFinder(fs, maxlines.WithChecksum(maxlines.ChecksumCRC32))
	report, err := finder.Analyze(ctx, "logs")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	for _, f := range report.Files {
		fmt.Println(f.Path, f.Lines, f.Checksum)
	}
	fmt.Println("winner:", report.WinnerPath())
	// Output:
	// logs/a.log 3 71229f00
	// logs/b.log 0 00000000
	// winner: logs/a.log
}

func ExampleFinder_Start() {
	ctx := context.Background()

	fs := memory.New()
	_ = fs.CreateDir(ctx, "empty")

	outcome := <-maxlines.NewFinder(fs).Start(ctx, "empty")
	fmt.Println(outcome.Found, outcome.Err)
	// Output:
	// false <nil>
}

func ExampleCountLines() {
	fmt.Println(maxlines.CountLines("a\n\nb\n"))
	fmt.Println(maxlines.CountLines(""))
	// Output:
	// 2
	// 0
}

func ExampleMaxIndex() {
	i, _ := maxlines.MaxIndex([]int{3, 5, 5})
	fmt.Println(i)

	_, err := maxlines.MaxIndex([]int{})
	fmt.Println(err)
	// Output:
	// 1
	// empty sequence has no maximum
}

func ExampleOnChange() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs := memory.New()
	_ = fs.Write(ctx, "notes/a.txt", strings.NewReader("1"))
	finder := maxlines.NewFinder(fs)

	watching := make(chan struct{})
	go func() {
		<-watching
		_ = fs.Write(ctx, "notes/b.txt", strings.NewReader("1\n2"))
	}()

	// Recompute once after the first change, then stop
	err := maxlines.OnChange(ctx,
		func() (maxlines.ChangeToken, error) {
			token, err := fs.Watch(ctx, "notes/*")
			if err != nil {
				return nil, err
			}
			close(watching)
			return token, nil
		},
		func() {
			winner, _, _ := finder.FindMaxFileInDirectory(ctx, "notes")
			fmt.Println(winner)
			cancel()
		},
	)
	fmt.Println(err)
	// Output:
	// notes/b.txt
	// context canceled
}
