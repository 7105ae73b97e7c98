package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/yleoer/stataconv/pkg/config"
	"github.com/yleoer/stataconv/pkg/converter"
	"github.com/yleoer/stataconv/pkg/database"
	"github.com/yleoer/stataconv/pkg/processor"
	"github.com/yleoer/stataconv/pkg/scanner"
	"github.com/yleoer/stataconv/pkg/util"
	"github.com/yleoer/stataconv/pkg/writer"
)

var errConversionFailed = errors.New("one or more files failed to convert")

type rootOptions struct {
	inputDir  string
	outputDir string
	format    string
	force     bool
	noLedger  bool
}

func newRootCmd(logger *log.Logger) *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "stataconv",
		Short:         "Convert CGED-Q Stata .dta files to Traditional-script CSV/XLSX with PersonUID",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.inputDir, "input-dir", "", "Directory containing .dta files (default $DTA_DIR or ./dta)")
	cmd.PersistentFlags().StringVar(&opts.outputDir, "output-dir", "", "Directory for converted files (default $OUTPUT_DIR or ./output)")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "", "Output format: csv, xlsx or both (default $OUTPUT_FORMAT or csv)")
	cmd.PersistentFlags().BoolVar(&opts.force, "force", false, "Convert even when the source is unchanged since the last conversion")
	cmd.PersistentFlags().BoolVar(&opts.noLedger, "no-ledger", false, "Do not read or write the conversion ledger")

	cmd.AddCommand(newConvertCmd(&opts, logger))
	cmd.AddCommand(newWatchCmd(&opts, logger))
	cmd.AddCommand(newHistoryCmd(&opts, logger))
	return cmd
}

// app 是一次命令执行所需的全部组件
type app struct {
	cfg       *config.Config
	scanner   *scanner.DTAScanner
	processor *processor.Processor
	store     database.ConversionStore
	logger    *log.Logger
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// setup 加载配置并按依赖顺序初始化各组件，命令行参数覆盖环境变量
func setup(opts *rootOptions, logger *log.Logger) (*app, error) {
	logger.Println("Starting Stata converter...")
	// 1. 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.inputDir != "" {
		cfg.DTADir = opts.inputDir
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}
	if opts.format != "" {
		cfg.OutputFormat = opts.format
	}
	formats, err := writer.ParseFormats(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}
	legacy, err := util.LookupEncoding(cfg.LegacyEncoding)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	logger.Printf("Configuration loaded: DTADir=%s, OutputDir=%s, Formats=%s, DBPath=%s",
		cfg.DTADir, cfg.OutputDir, writer.JoinFormats(formats), cfg.DBPath)

	// 2. 初始化所有依赖服务
	// 2.1 简繁转换器，OpenCC 不可用时退化为原样输出
	normalizer := converter.NewNormalizer(converter.NewTextConverter(cfg.OpenCCConfig, logger))
	// 2.2 转换记录
	a := &app{cfg: cfg, logger: logger, scanner: scanner.NewDTAScanner(logger)}
	if !opts.noLedger {
		store, err := database.NewSQLiteStore(cfg.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.store = store
	}
	// 2.3 处理器
	a.processor = processor.NewProcessor(processor.Options{
		OutputDir:      cfg.OutputDir,
		Formats:        formats,
		SheetName:      cfg.SheetName,
		LegacyEncoding: legacy,
		Force:          opts.force,
		OpenCCConfig:   cfg.OpenCCConfig,
		EncodingName:   cfg.LegacyEncoding,
	}, normalizer, a.store, logger)
	logger.Printf("Run ID: %s", a.processor.RunID())
	return a, nil
}
