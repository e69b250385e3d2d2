package duplicates

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/filesearch/internal/progress"
	"github.com/fenilsonani/filesearch/internal/sorter"
	"github.com/fenilsonani/filesearch/internal/testutil"
	"github.com/fenilsonani/filesearch/pkg/utils"
)

func groupsOf(f *testutil.TestFixture, res *Result) [][]string {
	var out [][]string
	for _, key := range res.Order {
		out = append(out, f.RelPaths(res.Groups[key]))
	}
	return out
}

func TestFindSizeExact(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateSizedFile("a.txt", 10, 'a'),
		f.CreateSizedFile("b.txt", 10, 'b'),
		f.CreateSizedFile("c.log", 10, 'c'),
		f.CreateSizedFile("d.txt", 11, 'd'),
	}

	res, err := New().Find(context.Background(), paths, Criteria{Size: Exact()})
	require.NoError(t, err)

	require.Equal(t, 1, res.Len())
	assert.Equal(t, [][]string{{"a.txt", "b.txt", "c.log"}}, groupsOf(f, res))

	key := res.Order[0]
	assert.Equal(t, "size:10", key)
	assert.Equal(t, f.Path("a.txt"), res.Representative[key])
	assert.Equal(t, 3, res.Members())
}

func TestFindContentIgnoresNames(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateFile("one/report.txt", []byte("same bytes")),
		f.CreateFile("two/summary.txt", []byte("same bytes")),
		f.CreateFile("three/other.txt", []byte("diff bytes")),
	}

	res, err := New(WithWorkers(2)).Find(context.Background(), paths, Criteria{Size: Exact(), Content: Exact()})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	key := res.Order[0]
	assert.Equal(t, f.Path("one/report.txt"), key, "content groups are keyed by their representative path")
	assert.ElementsMatch(t, f.Paths("one/report.txt", "two/summary.txt"), res.Groups[key])

	res, err = New().Find(context.Background(), paths, Criteria{Name: Exact()})
	require.NoError(t, err)
	assert.Zero(t, res.Len())
}

func TestFindContentNeverGroupsDifferentBytes(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateFile("a.bin", []byte("abcdef")),
		f.CreateFile("b.bin", []byte("abcdeg")),
		f.CreateFile("c.bin", []byte("abcdef")),
	}

	res, err := New(WithAlgorithms(utils.SHA256, utils.MD5)).Find(context.Background(), paths, Criteria{Content: Exact()})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a.bin", "c.bin"}}, groupsOf(f, res))
}

func TestFindContentFolders(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("dir1/a", []byte("AAAA"))
	f.CreateFile("dir1/b", []byte("BBBB"))
	f.CreateFile("dir2/a", []byte("AAAA"))
	f.CreateFile("dir2/b", []byte("BBBB"))
	f.CreateFile("a_concat.bin", []byte("AAAABBBB"))

	t.Run("file representative", func(t *testing.T) {
		res, err := New().Find(context.Background(), f.Paths("dir2", "a_concat.bin", "dir1"), Criteria{Content: Exact()})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"a_concat.bin", "dir1", "dir2"}}, groupsOf(f, res))
	})

	t.Run("directory representative dropped", func(t *testing.T) {
		res, err := New().Find(context.Background(), f.Paths("dir1", "dir2"), Criteria{Content: Exact()})
		require.NoError(t, err)
		assert.Zero(t, res.Len())
	})
}

func TestFindContentFolderBeforeFile(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("a/f.txt", []byte("same bytes"))
	f.CreateFile("b.txt", []byte("same bytes"))

	res, err := New().Find(context.Background(), f.Paths("a", "b.txt"), Criteria{Content: Exact()})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	key := res.Order[0]
	assert.Equal(t, f.Path("b.txt"), key)
	assert.Equal(t, f.Path("b.txt"), res.Representative[key])
	assert.Equal(t, f.Paths("b.txt", "a"), res.Groups[key], "the representative comes first")
}

func TestFindContentRandomBytes(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.CreateRandomFile("a.bin", 4096)
	b := f.CreateRandomFile("b.bin", 4096)
	c := f.CreateFile("c.bin", readFile(t, a))

	res, err := New(WithWorkers(2)).Find(context.Background(), []string{a, b, c}, Criteria{Content: Exact()})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a.bin", "c.bin"}}, groupsOf(f, res))
}

func TestFindSkipsEmptyFolders(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDir("empty1")
	f.CreateDir("empty2/nested")

	res, err := New().Find(context.Background(), f.Paths("empty1", "empty2"), Criteria{Size: Exact(), Content: Exact()})
	require.NoError(t, err)
	assert.Zero(t, res.Len())
	assert.Equal(t, 2, res.Skipped)
}

func TestFindSkipsMissingPaths(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateSizedFile("a.txt", 5, 'x'),
		f.CreateSizedFile("b.txt", 5, 'x'),
		f.Path("gone.txt"),
	}

	res, err := New().Find(context.Background(), paths, Criteria{Size: Exact()})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a.txt", "b.txt"}}, groupsOf(f, res))
	assert.Equal(t, 1, res.Skipped)
}

func TestFindNameFuzzy(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateFile("invoice.pdf", nil),
		f.CreateFile("holiday2.jpg", nil),
		f.CreateFile("holiday.jpg", nil),
		f.CreateFile("holiday1.jpg", nil),
	}

	res, err := New().Find(context.Background(), paths, Criteria{Name: Fuzzy(80)})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, [][]string{{"holiday.jpg", "holiday1.jpg", "holiday2.jpg"}}, groupsOf(f, res))
	assert.Equal(t, "name:holiday.jpg", res.Order[0])
}

func TestFindNameExactFoldsCase(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateFile("a/Notes.TXT", nil),
		f.CreateFile("b/notes.txt", nil),
		f.CreateFile("c/notes.md", nil),
	}

	res, err := New().Find(context.Background(), paths, Criteria{Name: Exact()})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a/Notes.TXT", "b/notes.txt"}}, groupsOf(f, res))
}

func TestFindSizeFuzzy(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateSizedFile("a.bin", 100, 'a'),
		f.CreateSizedFile("b.bin", 95, 'b'),
		f.CreateSizedFile("c.bin", 200, 'c'),
	}

	res, err := New().Find(context.Background(), paths, Criteria{Size: Fuzzy(90)})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a.bin", "b.bin"}}, groupsOf(f, res))
	assert.Equal(t, "size:100", res.Order[0])
}

func TestFindRefinesNameThenSize(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateSizedFile("dir1/x.txt", 10, 'x'),
		f.CreateSizedFile("dir2/X.TXT", 10, 'x'),
		f.CreateSizedFile("dir3/x.txt", 20, 'x'),
		f.CreateSizedFile("dir4/y.txt", 10, 'y'),
	}

	res, err := New().Find(context.Background(), paths, Criteria{Name: Exact(), Size: Exact()})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "name:x.txt|size:10", res.Order[0])
	assert.Equal(t, [][]string{{"dir1/x.txt", "dir2/X.TXT"}}, groupsOf(f, res))
}

func TestFindGroupsHaveTwoOrMoreMembers(t *testing.T) {
	f := testutil.NewFixture(t)
	var paths []string
	for i, size := range []int{1, 2, 2, 3, 4, 4, 4, 5} {
		paths = append(paths, f.CreateSizedFile(string(rune('a'+i))+".bin", size, 'z'))
	}

	res, err := New().Find(context.Background(), paths, Criteria{Size: Exact()})
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	for key, members := range res.Groups {
		assert.GreaterOrEqual(t, len(members), 2, key)
		assert.Equal(t, res.Representative[key], members[0])
	}
}

func TestFindSizeExactManyDistinct(t *testing.T) {
	f := testutil.NewFixture(t)
	var paths []string
	for i := 0; i < 300; i++ {
		paths = append(paths, f.CreateSizedFile(fmt.Sprintf("u%03d.bin", i), i+1, 'u'))
	}
	paths = append(paths,
		f.CreateSizedFile("dup1.bin", 150, 'd'),
		f.CreateSizedFile("dup2.bin", 300, 'd'),
	)

	res, err := New().Find(context.Background(), paths, Criteria{Size: Exact(), Sort: sorter.ModeSize})
	require.NoError(t, err)
	assert.Equal(t, []string{"size:300", "size:150"}, res.Order)
	assert.Equal(t, [][]string{{"dup2.bin", "u299.bin"}, {"dup1.bin", "u149.bin"}}, groupsOf(f, res))
}

func TestFindOrderFollowsSort(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateSizedFile("a1.bin", 10, 'a'),
		f.CreateSizedFile("a2.bin", 10, 'a'),
		f.CreateSizedFile("b1.bin", 300, 'b'),
		f.CreateSizedFile("b2.bin", 300, 'b'),
	}

	res, err := New().Find(context.Background(), paths, Criteria{Size: Exact(), Sort: sorter.ModeSize})
	require.NoError(t, err)
	assert.Equal(t, []string{"size:300", "size:10"}, res.Order)

	res, err = New().Find(context.Background(), paths, Criteria{Size: Exact(), Sort: sorter.ModeSize, Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"size:10", "size:300"}, res.Order)

	res, err = New().Find(context.Background(), paths, Criteria{Size: Exact(), Sort: sorter.Mode("Size")})
	require.NoError(t, err)
	assert.Equal(t, []string{"size:300", "size:10"}, res.Order)
}

func TestFindIsDeterministic(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateFile("photo_a.jpg", nil),
		f.CreateFile("photo_b.jpg", nil),
		f.CreateFile("photo_ab.jpg", nil),
		f.CreateFile("photos.jpg", nil),
		f.CreateFile("phone.txt", nil),
	}
	reversed := []string{paths[4], paths[3], paths[2], paths[1], paths[0]}

	first, err := New().Find(context.Background(), paths, Criteria{Name: Fuzzy(70)})
	require.NoError(t, err)
	second, err := New().Find(context.Background(), reversed, Criteria{Name: Fuzzy(70)})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCriteriaValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Criteria
		wantErr error
	}{
		{"none enabled", Criteria{}, ErrNoCriteria},
		{"fuzzy content", Criteria{Content: Fuzzy(90)}, ErrFuzzyContent},
		{"exact content", Criteria{Content: Exact()}, nil},
		{"fuzzy name", Criteria{Name: Fuzzy(1)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Error(t, Criteria{Size: Fuzzy(0)}.Validate())
	assert.Error(t, Criteria{Size: Fuzzy(101)}.Validate())
	assert.Error(t, Criteria{Size: Exact(), Sort: "colour"}.Validate())
}

func TestFindRejectsFuzzyContent(t *testing.T) {
	_, err := New().Find(context.Background(), nil, Criteria{Size: Exact(), Content: Fuzzy(50)})
	assert.ErrorIs(t, err, ErrFuzzyContent)
}

func TestFindCancelled(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateSizedFile("a.txt", 10, 'a'),
		f.CreateSizedFile("b.txt", 10, 'b'),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Find(ctx, paths, Criteria{Size: Exact()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindEmitsProgress(t *testing.T) {
	f := testutil.NewFixture(t)
	paths := []string{
		f.CreateFile("a.txt", []byte("hello")),
		f.CreateFile("b.txt", []byte("hello")),
	}

	var (
		mu     sync.Mutex
		phases = map[progress.Phase]int{}
	)
	ctx := progress.WithEmitter(context.Background(), progress.EmitterFunc(func(e progress.Event) {
		mu.Lock()
		phases[e.Phase]++
		mu.Unlock()
	}))

	res, err := New().Find(ctx, paths, Criteria{Content: Exact()})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len())

	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, phases[progress.PhaseGrouping])
	assert.GreaterOrEqual(t, phases[progress.PhaseHashing], 3, "start event plus one per hashed file")
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
