package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/himanishpuri/landmark/pkg/landmark"
	"github.com/himanishpuri/landmark/pkg/landmark/audio"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
	"github.com/himanishpuri/landmark/pkg/landmark/render"
	"github.com/himanishpuri/landmark/pkg/logger"
	"github.com/himanishpuri/landmark/pkg/utils"
)

// Global flags
var (
	dbPath     string
	storeKind  string
	tempDir    string
	sampleRate int
)

func registerGlobalFlags(fs *flag.FlagSet) {
	fs.StringVar(&dbPath, "db", getEnvOrDefault("LANDMARK_DB_PATH", landmark.DefaultDBPath), "Path to the catalog store")
	fs.StringVar(&storeKind, "store", getEnvOrDefault("LANDMARK_STORE", landmark.DefaultStoreKind), "Store backend: sqlite, badger or file")
	fs.StringVar(&tempDir, "temp", getEnvOrDefault("LANDMARK_TEMP_DIR", os.TempDir()), "Directory for temporary files")
	fs.IntVar(&sampleRate, "rate", getEnvIntOrDefault("LANDMARK_SAMPLE_RATE", landmark.DefaultSampleRate), "Required audio sample rate (0 accepts any)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		logger.Warnf("Ignoring %s=%q: not an integer", key, value)
	}
	return defaultValue
}

// createService opens the configured store and loads it into memory.
func createService() (landmark.Service, error) {
	return landmark.NewService(
		landmark.WithDBPath(dbPath),
		landmark.WithStoreKind(storeKind),
		landmark.WithTempDir(tempDir),
		landmark.WithSampleRate(sampleRate),
		landmark.WithAutoRestore(true),
	)
}

// persistIfNeeded writes the catalog for stores without per-track commits.
func persistIfNeeded(ctx context.Context, svc landmark.Service) error {
	if !strings.EqualFold(storeKind, landmark.StoreFile) {
		return nil
	}
	return svc.Persist(ctx)
}

// prepareInput optionally transcodes path with ffmpeg to the configured
// sample rate. The returned cleanup removes any converted copy.
func prepareInput(ctx context.Context, path string, convert bool) (string, func(), error) {
	if !convert {
		return path, func() {}, nil
	}
	rate := sampleRate
	if rate <= 0 {
		rate = landmark.DefaultSampleRate
	}
	dir, err := os.MkdirTemp(tempDir, "landmark_convert_")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }
	out, err := audio.Convert(ctx, path, dir, rate)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	logger.Debugf("Converted %s to %d Hz mono WAV", path, rate)
	return out, cleanup, nil
}

// splitArgs separates leading positional arguments from the flags that
// follow them, so "ingest song.wav --name X" parses.
func splitArgs(args []string) (positional, flags []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return positional, args[i:]
		}
		positional = append(positional, arg)
	}
	return positional, nil
}

func main() {
	_ = godotenv.Load()

	registerGlobalFlags(flag.CommandLine)
	flag.Usage = printUsage
	flag.Parse()

	log := logger.GetLogger()
	printBanner()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]
	log.Infof("Executing command: %s", command)

	switch command {
	case "ingest":
		handleIngest(args)
	case "ingest-dir":
		handleIngestDir(args)
	case "identify":
		handleIdentify(args)
	case "list":
		handleList()
	case "stats":
		handleStats()
	case "info":
		handleInfo(args)
	case "spectrogram":
		handleSpectrogram(args)
	case "export":
		handleExport(args)
	case "import":
		handleImport(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 _                 _                      _
| | __ _ _ __   __| |_ __ ___   __ _ _ __| | __
| |/ _' | '_ \ / _' | '_ ' _ \ / _' | '__| |/ /
| | (_| | | | | (_| | | | | | | (_| | |  |   <
|_|\__,_|_| |_|\__,_|_| |_| |_|\__,_|_|  |_|\_\

        Landmark Audio Fingerprinting CLI
`
	fmt.Println(banner)
}

func mustService() landmark.Service {
	log := logger.GetLogger()
	fmt.Println("🔧 Initializing service...")
	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	return svc
}

func handleIngest(args []string) {
	log := logger.GetLogger()

	positional, flagArgs := splitArgs(args)
	cmd := flag.NewFlagSet("ingest", flag.ExitOnError)
	name := cmd.String("name", "", "Track name (default: derived from the file name)")
	convert := cmd.Bool("convert", false, "Transcode with ffmpeg to the configured sample rate first")
	cmd.Parse(flagArgs)
	positional = append(positional, cmd.Args()...)

	if len(positional) != 1 {
		fmt.Println("Usage: landmark ingest <audio_file> [--name <name>] [--convert]")
		os.Exit(1)
	}
	audioPath := positional[0]
	if *name == "" {
		*name = utils.TrackName(audioPath)
	}

	svc := mustService()
	defer svc.Close()

	fmt.Println("🎵 Processing audio file...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	input, cleanup, err := prepareInput(ctx, audioPath, *convert)
	if err != nil {
		fmt.Printf("\n❌ Failed to convert audio: %v\n", err)
		log.Errorf("Conversion failed: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	id, err := svc.IngestFile(ctx, input, *name)
	if err != nil {
		fmt.Printf("\n❌ Failed to ingest track: %v\n", err)
		log.Errorf("IngestFile failed: %v", err)
		os.Exit(1)
	}
	if err := persistIfNeeded(ctx, svc); err != nil {
		fmt.Printf("\n❌ Failed to save catalog: %v\n", err)
		log.Errorf("Persist failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("\n✅ Successfully added track to catalog!")
	fmt.Printf("   ID:   %d\n", id)
	fmt.Printf("   Name: %s\n", *name)
}

func handleIngestDir(args []string) {
	log := logger.GetLogger()

	positional, flagArgs := splitArgs(args)
	cmd := flag.NewFlagSet("ingest-dir", flag.ExitOnError)
	workers := cmd.Int("workers", 0, "Parallel fingerprinting workers (default: NumCPU-1, at least 2)")
	cmd.Parse(flagArgs)
	positional = append(positional, cmd.Args()...)

	if len(positional) != 1 {
		fmt.Println("Usage: landmark ingest-dir <directory> [--workers <n>]")
		os.Exit(1)
	}

	files, err := utils.ListAudioFiles(positional[0])
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("📭 No audio files found")
		return
	}

	svc := mustService()
	defer svc.Close()

	ctx := context.Background()
	start := time.Now()
	summary := ingestFiles(ctx, svc, files, *workers, true)
	if err := persistIfNeeded(ctx, svc); err != nil {
		fmt.Printf("\n❌ Failed to save catalog: %v\n", err)
		log.Errorf("Persist failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Ingested %d of %d file(s) in %s\n", summary.Added, len(files), time.Since(start).Round(time.Millisecond))
	for _, f := range summary.Failed {
		fmt.Printf("   ⚠️  %s: %v\n", f.Path, f.Err)
	}
}

func handleIdentify(args []string) {
	log := logger.GetLogger()

	positional, flagArgs := splitArgs(args)
	cmd := flag.NewFlagSet("identify", flag.ExitOnError)
	top := cmd.Int("top", 5, "Number of ranked candidates to show")
	convert := cmd.Bool("convert", false, "Transcode with ffmpeg to the configured sample rate first")
	cmd.Parse(flagArgs)
	positional = append(positional, cmd.Args()...)

	if len(positional) != 1 {
		fmt.Println("Usage: landmark identify <audio_file> [--top <n>] [--convert]")
		os.Exit(1)
	}

	svc := mustService()
	defer svc.Close()

	fmt.Println("🔍 Analyzing audio file...")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	input, cleanup, err := prepareInput(ctx, positional[0], *convert)
	if err != nil {
		fmt.Printf("\n❌ Failed to convert audio: %v\n", err)
		log.Errorf("Conversion failed: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	report, err := svc.MatchFile(ctx, input)
	if err != nil {
		fmt.Printf("\n❌ Failed to identify: %v\n", err)
		log.Errorf("MatchFile failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("   Query: %s peaks, %s fingerprints\n", humanize.Comma(int64(report.Peaks)), humanize.Comma(int64(report.Fingerprints)))

	if !report.Result.Found {
		fmt.Println("\n❌ No match found")
	} else {
		r := report.Result
		fmt.Printf("\n✅ Match: %q (ID: %d)\n", r.Name, r.TrackID)
		fmt.Printf("   Confidence: %d | Offset: %d frames\n", r.Confidence, r.Offset)
	}

	if len(report.Candidates) > 0 && *top > 0 {
		fmt.Println("\n🎵 Candidates:")
		for i, c := range report.Candidates[:min(*top, len(report.Candidates))] {
			fmt.Printf("%d. %q (ID: %d) score %d, offset %d, %d aligned hashes\n", i+1, c.Name, c.TrackID, c.Score, c.Offset, c.Matches)
		}
	}
}

func handleList() {
	svc := mustService()
	defer svc.Close()

	tracks := svc.Tracks()
	if len(tracks) == 0 {
		fmt.Println("\n📭 No tracks in catalog")
		return
	}

	fmt.Printf("\n📚 Found %d track(s):\n\n", len(tracks))
	for _, t := range tracks {
		fmt.Printf("%4d. %s\n", t.ID, t.Name)
	}
}

func handleStats() {
	svc := mustService()
	defer svc.Close()

	stats := svc.Stats()
	fmt.Println("\n📊 Catalog statistics")
	fmt.Printf("   Store:        %s (%s)\n", storeKind, dbPath)
	fmt.Printf("   Tracks:       %s\n", humanize.Comma(int64(stats.Tracks)))
	fmt.Printf("   Hash buckets: %s\n", humanize.Comma(int64(stats.Buckets)))
	fmt.Printf("   Entries:      %s\n", humanize.Comma(int64(stats.Entries)))
	fmt.Printf("   Next ID:      %d\n", stats.NextID)
	if size, err := pathSize(dbPath); err == nil {
		fmt.Printf("   On disk:      %s\n", humanize.Bytes(uint64(size)))
	}
}

func handleInfo(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: landmark info <audio_file>")
		os.Exit(1)
	}

	meta, err := audio.ReadMetadata(context.Background(), args[0])
	if err != nil {
		fmt.Printf("❌ Failed to read metadata: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n🎧 %s\n", meta.Filename)
	if meta.Title != "" {
		fmt.Printf("   Title:       %s\n", meta.Title)
	}
	if meta.Artist != "" {
		fmt.Printf("   Artist:      %s\n", meta.Artist)
	}
	fmt.Printf("   Format:      %s\n", meta.Format)
	fmt.Printf("   Duration:    %.2fs\n", meta.DurationSec)
	fmt.Printf("   Sample rate: %d Hz, %d channel(s)\n", meta.SampleRate, meta.Channels)
	if sampleRate > 0 && meta.SampleRate != sampleRate {
		fmt.Printf("   ⚠️  Catalog expects %d Hz, use --convert when ingesting or identifying\n", sampleRate)
	}
}

func handleSpectrogram(args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: landmark spectrogram <audio_file> <output.png>")
		os.Exit(1)
	}
	ctx := context.Background()

	clip, err := audio.Load(args[0], sampleRate)
	if err != nil {
		fmt.Printf("❌ Failed to load audio: %v\n", err)
		os.Exit(1)
	}
	spec, err := fingerprint.ComputeSpectrogram(clip.Samples, clip.SampleRate, fingerprint.DefaultSpectrogramConfig())
	if err != nil {
		fmt.Printf("❌ Failed to compute spectrogram: %v\n", err)
		os.Exit(1)
	}
	peaks, err := fingerprint.ExtractPeaks(ctx, spec, fingerprint.DefaultPeakConfig())
	if err != nil {
		fmt.Printf("❌ Failed to extract peaks: %v\n", err)
		os.Exit(1)
	}

	if err := render.SavePNG(spec, peaks, args[1], render.DefaultOptions()); err != nil {
		fmt.Printf("❌ Failed to render: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Saved %dx%d spectrogram with %s peaks to %s\n", spec.Frames(), spec.Bins(), humanize.Comma(int64(len(peaks))), args[1])
}

func handleExport(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: landmark export <snapshot_file>")
		os.Exit(1)
	}
	ctx := context.Background()

	src, err := landmark.OpenStore(storeKind, dbPath, logger.GetLogger())
	if err != nil {
		fmt.Printf("❌ Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	n, err := copyCatalog(ctx, src, landmark.NewFileStore(args[0]))
	if err != nil {
		fmt.Printf("❌ Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Exported %d track(s) to %s\n", n, args[0])
}

func handleImport(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: landmark import <snapshot_file>")
		os.Exit(1)
	}
	ctx := context.Background()

	dst, err := landmark.OpenStore(storeKind, dbPath, logger.GetLogger())
	if err != nil {
		fmt.Printf("❌ Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer dst.Close()

	n, err := copyCatalog(ctx, landmark.NewFileStore(args[0]), dst)
	if err != nil {
		fmt.Printf("❌ Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Imported %d track(s) into %s\n", n, dbPath)
}

func printUsage() {
	fmt.Println("Landmark - Audio Fingerprinting CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>        Catalog store path (env: LANDMARK_DB_PATH, default: landmark.sqlite3)")
	fmt.Println("  --store <kind>     sqlite, badger or file (env: LANDMARK_STORE, default: sqlite)")
	fmt.Println("  --temp <dir>       Temporary directory (env: LANDMARK_TEMP_DIR)")
	fmt.Println("  --rate <hz>        Required sample rate (env: LANDMARK_SAMPLE_RATE, default: 22050)")
	fmt.Println("\nUsage:")
	fmt.Println("  landmark [global-options] ingest <audio_file> [--name <name>] [--convert]")
	fmt.Println("  landmark [global-options] ingest-dir <directory> [--workers <n>]")
	fmt.Println("  landmark [global-options] identify <audio_file> [--top <n>] [--convert]")
	fmt.Println("  landmark [global-options] info <audio_file>")
	fmt.Println("  landmark [global-options] spectrogram <audio_file> <output.png>")
	fmt.Println("  landmark [global-options] list")
	fmt.Println("  landmark [global-options] stats")
	fmt.Println("  landmark [global-options] export <snapshot_file>")
	fmt.Println("  landmark [global-options] import <snapshot_file>")
	fmt.Println("\nExamples:")
	fmt.Println("  landmark --db songs.sqlite3 ingest song.wav --name \"Song\"")
	fmt.Println("  landmark --store badger --db ./catalog ingest-dir ./music --workers 4")
	fmt.Println("  landmark --rate 44100 identify query.mp3")
	fmt.Println("  landmark identify recording.m4a --convert")
}
