package main

import (
	"log"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/chaincode/medrecords/medrecords"
)

func main() {
	medrecordsChaincode, err := contractapi.NewChaincode(&medrecords.SmartContract{})
	if err != nil {
		log.Panicf("Error creating medrecords chaincode: %v", err)
	}

	if err := medrecordsChaincode.Start(); err != nil {
		log.Panicf("Error starting medrecords chaincode: %v", err)
	}
}
