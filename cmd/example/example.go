package main

import (
	"fmt"
	"log"
	"os"

	"github.com/voodooEntity/gits"
	"github.com/voodooEntity/gits/src/query"

	"github.com/laughingman-dev/binpipe"
	"github.com/laughingman-dev/binpipe/src/example"
	"github.com/laughingman-dev/binpipe/src/system/archivist"
	"github.com/laughingman-dev/binpipe/src/system/configBuilder"
	"github.com/laughingman-dev/binpipe/src/system/ledger"
	"github.com/laughingman-dev/binpipe/src/system/pipeline"
)

func main() {
	//logger := log.New(io.Discard, "", 0)
	logger := log.New(os.Stdout, "", 0)

	// create base instance. ident is required.
	bp := binpipe.New(binpipe.Settings{
		Ident:    "GreatName",
		LogLevel: archivist.LEVEL_INFO,
		Logger:   logger,
		History:  true,
	})

	// register the built-in example pipes and the container type
	// their arguments declare
	bp.RegisterPipes(example.Factories())
	bp.RegisterContainerType(example.ContainerTypeFunctions, func() pipeline.Container {
		return pipeline.NewPayloadContainer(example.ContainerTypeFunctions)
	})

	// the model global the import pipe reads from
	model := example.NewModel()
	model.Functions["main"] = "entry:0x1000"
	model.Functions["helper"] = "entry:0x2000"
	bp.AddGlobal(model)

	// build the pipeline definition in code. the same structure can
	// be loaded from a TOML file instead.
	def := configBuilder.NewConfig().
		SetName("example").
		AddKind(example.KindBinary, "", 0).
		AddKind(example.KindRawFunction, "", 1).
		AddKind(example.KindLiftedFunction, example.KindRawFunction, 1).
		AddKind(example.KindBinarySummary, "", 0).
		AddContainer("binary", example.ContainerTypeFunctions).
		AddContainer("functions", example.ContainerTypeFunctions).
		AddContainer("lifted", example.ContainerTypeFunctions).
		AddContainer("summary", example.ContainerTypeFunctions).
		AddPipe(configBuilder.NewPipe("importFunctions").
			Bind("binary", "functions")).
		AddPipe(configBuilder.NewPipe("liftFunctions").
			Bind("functions", "lifted").
			SetOption("lift-prefix", "lifted")).
		AddPipe(configBuilder.NewPipe("summarizeBinary").
			Bind("lifted", "summary")).
		Build()

	if err := bp.LoadDefinition(def); err != nil {
		logger.Println("loading pipeline:", err)
		os.Exit(1)
	}

	// seed the binary artifact everything else derives from
	binaryKind, err := bp.Registry().Get(example.KindBinary)
	if err != nil {
		logger.Println("resolving binary kind:", err)
		os.Exit(1)
	}
	binaryContainer, err := bp.Runner().State().Get("binary")
	if err != nil {
		logger.Println("resolving binary container:", err)
		os.Exit(1)
	}
	binaryContainer.(*pipeline.PayloadContainer).Store(pipeline.NewTarget(binaryKind), []byte("ELF"))

	// request every lifted function plus the binary summary and
	// start the run asynchronously
	request, err := bp.ParseRequest("lifted=lifted-function:*", "summary=binary-summary:")
	if err != nil {
		logger.Println("building request:", err)
		os.Exit(1)
	}
	runID, err := bp.Start(request, nil)
	if err != nil {
		logger.Println("starting run:", err)
		os.Exit(1)
	}

	// get an observer instance. the callback fires once the run
	// closed in the history
	obsi, err := bp.GetObserverInstance(runID, func(history *ledger.Ledger) {
		logger.Println("Run closed with status:", history.RunStatus(runID))
		for _, invocation := range history.Invocations(runID) {
			logger.Println("  pipe", invocation.Pipe, "->", invocation.Status)
		}
	})
	if err != nil {
		logger.Println("observing run:", err)
		os.Exit(1)
	}

	// register a tick function
	fn := func(store *gits.Gits, logger *archivist.Archivist) {
		logger.Info("yes i tick")
	}
	obsi.RegisterTickFunction(&fn)
	obsi.SetTickRate(20)

	// blocking while the run is open
	obsi.Loop()

	// history is enabled so we can look up the executed runs
	qry := query.New().Read("Run")
	res := bp.History().Store().Query().Execute(qry)
	fmt.Println(fmt.Sprintf("%+v", res))
}
